// Package config loads the optional destination configuration file so
// connection parameters don't have to be repeated on every invocation.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tabsql/tabsql"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is the default destination config file name.
const ConfigFileName = "tabsql.yaml"

// DestinationConfig mirrors tabsql.Destination in YAML. The password is
// deliberately absent: it comes from the environment only.
type DestinationConfig struct {
	Engine   string `yaml:"engine"`
	Path     string `yaml:"path,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// FileConfig is the root of tabsql.yaml.
type FileConfig struct {
	Destination DestinationConfig `yaml:"destination"`
	BatchSize   int               `yaml:"batch_size,omitempty"`
	MemoryLimit int64             `yaml:"memory_limit_mb,omitempty"`
}

// Load reads and parses the config file at path.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Destination converts the YAML form into a tabsql.Destination, injecting
// the password from the environment for the MySQL engine.
func (c *FileConfig) ResolveDestination(password string) (tabsql.Destination, error) {
	switch tabsql.EngineKind(c.Destination.Engine) {
	case tabsql.EngineSQLite:
		if c.Destination.Path == "" {
			return tabsql.Destination{}, errors.New("sqlite destination requires path")
		}
		return tabsql.Destination{
			Engine: tabsql.EngineSQLite,
			Path:   c.Destination.Path,
		}, nil

	case tabsql.EngineMySQL:
		if c.Destination.Host == "" || c.Destination.Database == "" {
			return tabsql.Destination{}, errors.New("mysql destination requires host and database")
		}
		port := c.Destination.Port
		if port == 0 {
			port = 3306
		}
		return tabsql.Destination{
			Engine:   tabsql.EngineMySQL,
			Host:     c.Destination.Host,
			Port:     port,
			User:     c.Destination.Username,
			Password: password,
			Database: c.Destination.Database,
		}, nil

	default:
		return tabsql.Destination{}, fmt.Errorf("unknown engine %q", c.Destination.Engine)
	}
}
