package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Structs

// Config holds all information parsed from a supplied config file.
type Config struct {
	Session Session
	TLS     TLS
}

// Session is the connection related part of the TOML config file:
// which server to talk to and how the session should behave.
type Session struct {
	Host           string
	Port           uint16
	Timeout        int
	ImplicitTLS    bool
	TLSVersion     string
	PrometheusAddr string
}

// TLS configures certificate verification for encrypted
// connections.
type TLS struct {
	RootCertLoc string
	ServerName  string
}

// Functions

// LoadConfig takes in the path to a config file in TOML syntax and
// places the values from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	if _, err := toml.DecodeFile(configFile, conf); err != nil {
		return nil, errors.Wrapf(err, "failed to read in TOML config file at '%s'", configFile)
	}

	if conf.Session.Host == "" {
		return nil, errors.New("config does not name a server host")
	}

	if conf.Session.Port == 0 {
		conf.Session.Port = 143
		if conf.Session.ImplicitTLS {
			conf.Session.Port = 993
		}
	}

	// An absent timeout means the default of 30 seconds, a
	// negative one disables the inactivity watchdog.
	if conf.Session.Timeout == 0 {
		conf.Session.Timeout = 30
	}

	switch strings.ToLower(conf.Session.TLSVersion) {
	case "", "any", "tls1.2", "tls1.3":
	default:
		return nil, errors.Errorf("unsupported TLS version '%s' in config", conf.Session.TLSVersion)
	}

	// The server host doubles as certificate name unless the
	// config pins one explicitly.
	if conf.TLS.ServerName == "" {
		conf.TLS.ServerName = conf.Session.Host
	}

	return conf, nil
}
