// Package config loads proxy settings from environment variables, applies
// defaults, and validates the result.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Host is the address the proxy binds its listening socket to.
	Host string `koanf:"host" validate:"required,ip"`

	// Port is the UDP port the proxy listens on. 53 requires privileges.
	Port int `koanf:"port" validate:"required,gte=1,lt=65535"`

	// Upstream is the single fixed upstream resolver in ip:port format.
	// Cache misses are forwarded here; there is no failover.
	Upstream string `koanf:"upstream" validate:"required,ip_port"`

	// UpstreamTimeout bounds the wait for one upstream reply.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout" validate:"required,gt=0"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
}

// DEFAULT_APP_CONFIG mirrors the proxy's classic defaults: bind everywhere on
// the DNS port, forward to Google's public resolver, wait three seconds.
var DEFAULT_APP_CONFIG = AppConfig{
	Host:            "0.0.0.0",
	Port:            53,
	Upstream:        "8.8.8.8:53",
	UpstreamTimeout: 3 * time.Second,
	Env:             "prod",
	LogLevel:        "info",
}

// ListenAddr returns the host:port string the listener binds to.
func (c *AppConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// validIPPort validates that a field holds a valid "IP:Port" value.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables prefixed with "DNS_", lowercasing
// keys and stripping the prefix. Swappable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader seeds the koanf instance with DEFAULT_APP_CONFIG values.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("ip_port", validIPPort); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
