package config

import (
	"flag"
	"fmt"
	"os"
)

// Manager is cmd/manager's configuration, per spec.md §4.G/§4.H/§8.
type Manager struct {
	Bus         Bus
	Logging     Logging
	DatabaseURL string

	ConfigFile string // optional hot-reload source, §3
}

// ParseManager registers flags and parses argv.
func ParseManager(args []string) (Manager, error) {
	var cfg Manager
	fs := flag.NewFlagSet("manager", flag.ContinueOnError)

	registerBusFlagsOn(fs, &cfg.Bus)
	registerLoggingFlagsOn(fs, &cfg.Logging)

	fs.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL (env: DATABASE_URL)")
	fs.StringVar(&cfg.ConfigFile, "config-file", os.Getenv("CONFIG_FILE"), "optional hot-reload config file path (env: CONFIG_FILE)")

	if err := fs.Parse(args); err != nil {
		return Manager{}, err
	}
	if err := cfg.validate(); err != nil {
		return Manager{}, err
	}
	return cfg, nil
}

func (c Manager) validate() error {
	if err := c.Bus.validate(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: database-url is required")
	}
	return nil
}
