package config

// ConfigDiff describes what changed between two configs: the log level,
// the provider selection, and the domain list.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	DomainsChanged   bool
	DomainChanges    []DomainDiff
	ProvidersChanged bool
}

// DomainDiff describes what changed for a single domain between two configs.
type DomainDiff struct {
	Name                 string
	WeightProfileChanged bool
	Added                bool
	Removed              bool
}

// Diff compares old and new configs and returns what changed in the log
// level, the embeddings and tagger provider names and models, and each
// domain's presence and weight profile. Storage path, GPU budget and MCP
// server settings are not compared.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Providers.Embeddings.Name != new.Providers.Embeddings.Name ||
		old.Providers.Embeddings.Model != new.Providers.Embeddings.Model ||
		old.Providers.Tagger.Name != new.Providers.Tagger.Name ||
		old.Providers.Tagger.Model != new.Providers.Tagger.Model {
		d.ProvidersChanged = true
	}

	oldDomains := make(map[string]*DomainConfig, len(old.Domains))
	for i := range old.Domains {
		oldDomains[old.Domains[i].Name] = &old.Domains[i]
	}
	newDomains := make(map[string]*DomainConfig, len(new.Domains))
	for i := range new.Domains {
		newDomains[new.Domains[i].Name] = &new.Domains[i]
	}

	for name, oldDomain := range oldDomains {
		newDomain, exists := newDomains[name]
		if !exists {
			d.DomainChanges = append(d.DomainChanges, DomainDiff{Name: name, Removed: true})
			d.DomainsChanged = true
			continue
		}
		if oldDomain.WeightProfile != newDomain.WeightProfile {
			d.DomainChanges = append(d.DomainChanges, DomainDiff{Name: name, WeightProfileChanged: true})
			d.DomainsChanged = true
		}
	}
	for name := range newDomains {
		if _, exists := oldDomains[name]; !exists {
			d.DomainChanges = append(d.DomainChanges, DomainDiff{Name: name, Added: true})
			d.DomainsChanged = true
		}
	}

	return d
}
