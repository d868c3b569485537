package models

// Source identifies one monitored printer.
type Source struct {
	ID   string
	Host string
	// Address is the resolved network address; empty when resolution failed.
	Address string
}

// Resolved reports whether the source can be polled this cycle.
func (s Source) Resolved() bool {
	return s.Address != ""
}

// FleetFile models the YAML fleet definition.
type FleetFile struct {
	Sources []FleetEntry `yaml:"sources"`
}

// FleetEntry is one configured source. Host defaults to ID; a static
// Address skips name resolution.
type FleetEntry struct {
	ID      string `yaml:"id"`
	Host    string `yaml:"host,omitempty"`
	Address string `yaml:"address,omitempty"`
}
