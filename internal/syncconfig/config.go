// Package syncconfig loads the YAML config cmd/sharesync reads,
// continuing the teacher's internal/config convention (gopkg.in/yaml.v2,
// read-file-then-Unmarshal-then-apply-defaults).
package syncconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// File is the on-disk shape of a sharesync config file.
type File struct {
	BaseURL       string   `yaml:"baseURL"`
	RepoName      string   `yaml:"repoName"`
	Segments      []string `yaml:"segments"`
	DataDir       string   `yaml:"dataDir"`
	MinimumFreeGB uint     `yaml:"minimumFreeGB"`
	BearerToken   string   `yaml:"bearerToken"`
}

// defaultDataDir mirrors the teacher's cmd/cli getDataDir default of a
// dotdir under the user's home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sharesync/data"
	}
	return home + "/.sharesync/data"
}

// Load reads and parses the YAML config file at path. An empty dataDir
// defaults to a dotdir under the user's home; repoName and baseURL are
// required; other fields are kept as the file sets them.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("syncconfig: read %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, fmt.Errorf("syncconfig: parse %s: %w", path, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	if cfg.RepoName == "" {
		return File{}, fmt.Errorf("syncconfig: %s: repoName is required", path)
	}
	if cfg.BaseURL == "" {
		return File{}, fmt.Errorf("syncconfig: %s: baseURL is required", path)
	}

	return cfg, nil
}
