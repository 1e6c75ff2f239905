package config

// CLIConfig is the configuration for corslight-cli.
type CLIConfig struct {
	// DefaultOutput applies when --output is not given.
	DefaultOutput string `yaml:"default_output,omitempty"`

	// Current names the profile used when --profile is not given.
	Current string `yaml:"current,omitempty"`

	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile stores connection settings. Empty fields leave the flag default
// in place.
type Profile struct {
	Server    string `yaml:"server,omitempty"`
	Network   string `yaml:"network,omitempty"`
	Target    string `yaml:"target,omitempty"`
	Origin    string `yaml:"origin,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`
}

// Default returns an empty configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Profiles: make(map[string]Profile),
	}
}

// Profile returns the named profile, or the current one when name is
// empty.
func (c *CLIConfig) Profile(name string) (Profile, bool) {
	if name == "" {
		name = c.Current
	}
	if name == "" {
		return Profile{}, false
	}
	p, ok := c.Profiles[name]
	return p, ok
}

// Fields returns the profile as flag name to value, skipping empty fields.
func (p Profile) Fields() map[string]string {
	out := make(map[string]string, 6)
	for name, v := range map[string]string{
		"server":    p.Server,
		"network":   p.Network,
		"target":    p.Target,
		"origin":    p.Origin,
		"namespace": p.Namespace,
		"timeout":   p.Timeout,
	} {
		if v != "" {
			out[name] = v
		}
	}
	return out
}
