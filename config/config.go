/*
Configuration for a web3 client: which node to talk to, how to secure the
connection, and where logs and metrics go. Loaded with viper from flags,
environment variables ("WEB3_ENDPOINT", "WEB3_LOG_LEVEL", ...) and an optional
config file, then turned into dial options.
*/
package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/purelabio/web3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Viper keys.
const (
	Endpoint   = "endpoint"
	Transports = "transports"
	Timeout    = "timeout"
	Headers    = "headers"

	TLS_Insecure   = "tls.insecure"
	TLS_CaFile     = "tls.ca_file"
	TLS_ServerName = "tls.server_name"

	Log_Level      = "log.level"
	Log_File       = "log.file"
	Log_MaxSizeMb  = "log.max_size_mb"
	Log_MaxBackups = "log.max_backups"

	Metrics_Enabled = "metrics.enabled"
)

type Config struct {
	// URL or IPC path of the node.
	Endpoint string `mapstructure:"endpoint"`
	// Allowed transports; empty means all.
	Transports []string `mapstructure:"transports"`
	// Default per-call timeout. Zero means none.
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`

	TLS     TLSConfig     `mapstructure:"tls"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type TLSConfig struct {
	Insecure   bool   `mapstructure:"insecure"`
	CaFile     string `mapstructure:"ca_file"`
	ServerName string `mapstructure:"server_name"`
}

type LogConfig struct {
	// One of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Empty means stderr.
	File       string `mapstructure:"file"`
	MaxSizeMb  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns the settings used when nothing else is configured.
var DefaultConfig = Config{
	Endpoint: "http://127.0.0.1:8545",
	Timeout:  30 * time.Second,
	Log: LogConfig{
		Level:      "info",
		MaxSizeMb:  100,
		MaxBackups: 3,
	},
}

// Registers defaults and environment bindings on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(Endpoint, DefaultConfig.Endpoint)
	v.SetDefault(Timeout, DefaultConfig.Timeout)
	v.SetDefault(Log_Level, DefaultConfig.Log.Level)
	v.SetDefault(Log_MaxSizeMb, DefaultConfig.Log.MaxSizeMb)
	v.SetDefault(Log_MaxBackups, DefaultConfig.Log.MaxBackups)

	v.SetEnvPrefix("web3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Reads the configuration from the given viper instance and validates it.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var out Config
	err := v.Unmarshal(&out)
	if err != nil {
		return out, errors.Wrap(err, "failed to decode configuration")
	}
	return out, out.Validate()
}

func (self Config) Validate() error {
	if self.Endpoint == "" {
		return errors.New("configuration: endpoint is required")
	}
	for _, kind := range self.Transports {
		switch web3.TransKind(kind) {
		case web3.TransHttp, web3.TransWs, web3.TransIpc:
		default:
			return errors.Errorf("configuration: unknown transport %q", kind)
		}
	}
	if self.Timeout < 0 {
		return errors.New("configuration: timeout can't be negative")
	}
	_, err := parseLevel(self.Log.Level)
	return err
}

/*
Translates the configuration into options for "web3.Dial". `reg` receives the
transport metrics when they're enabled; nil means the default registerer.
*/
func (self Config) DialOptions(logger *zap.Logger, reg prometheus.Registerer) ([]web3.Option, error) {
	opts := []web3.Option{web3.WithLogger(logger)}

	if len(self.Transports) > 0 {
		kinds := make([]web3.TransKind, len(self.Transports))
		for i, kind := range self.Transports {
			kinds[i] = web3.TransKind(kind)
		}
		opts = append(opts, web3.WithTransports(kinds...))
	}

	for key, val := range self.Headers {
		opts = append(opts, web3.WithHeader(key, val))
	}

	tlsConfig, err := self.TLS.tlsConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, web3.WithTLSConfig(tlsConfig))
	}

	if self.Metrics.Enabled {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		opts = append(opts, web3.WithMetrics(web3.NewMetrics(reg)))
	}
	return opts, nil
}

func (self TLSConfig) tlsConfig() (*tls.Config, error) {
	if !self.Insecure && self.CaFile == "" && self.ServerName == "" {
		return nil, nil
	}

	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: self.Insecure,
		ServerName:         self.ServerName,
	}

	if self.CaFile != "" {
		pem, err := os.ReadFile(self.CaFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CA file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %q", self.CaFile)
		}
		out.RootCAs = pool
	}
	return out, nil
}
