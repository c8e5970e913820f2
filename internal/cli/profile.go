package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds the endpoint and credentials the CLI uses to talk to a
// running secmon instance.
type Profile struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
}

// ProfileConfig is the CLI configuration stored at ~/.secmon/config.yaml.
type ProfileConfig struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`

	path string
}

func defaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".secmon", "config.yaml"), nil
}

// LoadProfiles reads the CLI profile config, returning defaults when the
// file does not exist yet.
func LoadProfiles(path string) (*ProfileConfig, error) {
	if path == "" {
		var err error
		path, err = defaultProfilePath()
		if err != nil {
			return nil, err
		}
	}

	cfg := &ProfileConfig{
		CurrentProfile: "default",
		Profiles: map[string]*Profile{
			"default": {ServerURL: "http://localhost:8085"},
		},
		path: path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profile config: %w", err)
	}
	cfg.path = path
	return cfg, nil
}

// Save writes the profile config to disk with restrictive permissions,
// since it can carry an API key.
func (c *ProfileConfig) Save() error {
	if c.path == "" {
		var err error
		c.path, err = defaultProfilePath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Get returns the named profile, or the current profile when name is empty.
func (c *ProfileConfig) Get(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}
