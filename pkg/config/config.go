// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the link-scoped authentication options of spec.md
// §6, plus the global daemon settings a real deployment needs, with
// github.com/spf13/viper (grounded on the teacher's cmd/vmcp/app and
// cmd/thv/app cobra+viper wiring: PersistentFlags bound with
// viper.BindPFlag, config path read back with viper.GetString).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mpd-project/mpd/pkg/link"
)

// ErrInvalidTimeout is returned by Validate when a link's Timeout is not
// greater than 20 seconds, per spec.md §6.
var ErrInvalidTimeout = fmt.Errorf("timeout must be greater than 20 seconds")

// LinkOptions is one link's worth of spec.md §6 options.
type LinkOptions struct {
	MaxLogins      int           `mapstructure:"max-logins"`
	Authname       string        `mapstructure:"authname"`
	Password       string        `mapstructure:"password"`
	ExtAuthScript  string        `mapstructure:"extauth-script"`
	AcctUpdate     time.Duration `mapstructure:"acct-update"`
	UpdateLimitIn  uint64        `mapstructure:"update-limit-in"`
	UpdateLimitOut uint64        `mapstructure:"update-limit-out"`
	Timeout        time.Duration `mapstructure:"timeout"`

	EnableExternal bool `mapstructure:"enable-external"`
	EnableRadius   bool `mapstructure:"enable-radius"`
	EnableSystem   bool `mapstructure:"enable-system"`
	EnableOPIE     bool `mapstructure:"enable-opie"`
	EnableInternal bool `mapstructure:"enable-internal"`

	RetryTimeout time.Duration `mapstructure:"retry-timeout"`
	Retries      int           `mapstructure:"retries"`
}

// DaemonOptions are global settings not scoped to any one link.
type DaemonOptions struct {
	SecretsFilePath string   `mapstructure:"secrets-file"`
	WorkerPoolSize  int64    `mapstructure:"worker-pool-size"`
	RadiusServers   []string `mapstructure:"radius-servers"`
	MetricsAddr     string   `mapstructure:"metrics-addr"`

	// UtmpPath/WtmpPath enable the UTMP/WTMP accounting backend (spec.md
	// §4.7) daemon-wide when both are set; utmp/wtmp are host-global logs,
	// not scoped to a single link.
	UtmpPath string `mapstructure:"utmp-path"`
	WtmpPath string `mapstructure:"wtmp-path"`
}

// Config is the daemon's full configuration: global settings plus one
// LinkOptions per configured link name.
type Config struct {
	Daemon DaemonOptions          `mapstructure:"daemon"`
	Links  map[string]LinkOptions `mapstructure:"links"`
}

// Load reads and validates the configuration file at path. Unset fields
// receive the defaults set below before the file is merged in.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("daemon.worker-pool-size", int64(64))
	v.SetDefault("links", map[string]any{})

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the per-link invariants of spec.md §6: Timeout must
// be greater than 20 seconds.
func (c *Config) Validate() error {
	for name, opts := range c.Links {
		if opts.Timeout <= 20*time.Second {
			return fmt.Errorf("config: link %q: %w (got %s)", name, ErrInvalidTimeout, opts.Timeout)
		}
	}
	return nil
}

// ToLinkConfig converts a LinkOptions into the pkg/link.Config the
// controller consumes. Protocol-negotiation details (CHAP algorithm, EAP
// mode) are outside spec.md §6's option set and are left at their zero
// value for the caller to set once LCP negotiates them.
func (o LinkOptions) ToLinkConfig() link.Config {
	return link.Config{
		Authname:       o.Authname,
		Password:       o.Password,
		MaxLogins:      o.MaxLogins,
		ExtAuthScript:  o.ExtAuthScript,
		AcctUpdate:     o.AcctUpdate,
		UpdateLimitIn:  o.UpdateLimitIn,
		UpdateLimitOut: o.UpdateLimitOut,
		Timeout:        o.Timeout,
		EnableExternal: o.EnableExternal,
		EnableRadius:   o.EnableRadius,
		EnableSystem:   o.EnableSystem,
		EnableOPIE:     o.EnableOPIE,
		EnableInternal: o.EnableInternal,
		RetryTimeout:   o.RetryTimeout,
		Retries:        o.Retries,
	}
}
