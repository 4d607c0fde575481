package goPortal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envKeyReplacer maps backend.base_url to GOPORTAL_BACKEND_BASE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// LoadConfig reads configuration from path (any format viper understands)
// and GOPORTAL_* environment variables, on top of [DefaultConfig]. An empty
// path searches ./.goportal.yaml and $HOME/.config/goportal/config.yaml; a
// missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".goportal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/goportal")
	}

	v.SetEnvPrefix("GOPORTAL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v, defaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.login_path", d.Backend.LoginPath)
	v.SetDefault("backend.refresh_path", d.Backend.RefreshPath)
	v.SetDefault("backend.me_path", d.Backend.MePath)
	v.SetDefault("backend.roles_path", d.Backend.RolesPath)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.user_agent", d.Backend.UserAgent)
	v.SetDefault("backend.max_response_bytes", d.Backend.MaxResponseBytes)
	v.SetDefault("backend.trusted_origins", d.Backend.TrustedOrigins)

	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.file_path", d.Store.FilePath)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", d.Store.RedisPassword)
	v.SetDefault("store.redis_db", d.Store.RedisDB)
	v.SetDefault("store.redis_key", d.Store.RedisKey)
	v.SetDefault("store.redis_ttl", d.Store.RedisTTL)

	v.SetDefault("renewal.single_flight", d.Renewal.SingleFlight)

	v.SetDefault("portal.account_kind", d.Portal.AccountKind)
	v.SetDefault("portal.allowed_role_ids", d.Portal.AllowedRoleIDs)
	v.SetDefault("portal.default_route", d.Portal.DefaultRoute)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
