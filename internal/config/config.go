package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
	"github.com/EonsofStupid/EzDbMigrate/internal/retry"
	"github.com/EonsofStupid/EzDbMigrate/internal/verify"
)

type Config struct {
	// Endpoints of the migration. Which ones are required depends on the
	// operation; that validation happens at start time, not load time.
	Source migration.Endpoint
	Target migration.Endpoint

	// RestoreArtifact is the backup artifact a restore reads from.
	RestoreArtifact string

	VerifyTimeout time.Duration
	StageTimeout  time.Duration

	// Provider selects the offsite archive destination ("" disables offsite
	// replication, "azure" enables it).
	Provider string
	Azure    AzureConfig

	Driver DriverConfig

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryEnableJitter bool
}

type AzureConfig struct {
	Account   string
	Container string
	SASToken  string

	ClientID     string
	ClientSecret string
	TenantID     string
}

// DriverConfig locates the driver bundle sources.
type DriverConfig struct {
	Package     string
	ManifestURL string
	Channel     string
	RepoOwner   string
	RepoName    string
}

// Driver bundle defaults; the manifest is the primary source, the GitHub
// releases of the tools repository the fallback.
const (
	defaultManifestURL = "https://raw.githubusercontent.com/devpulse-tools/dptools-deps/main/deps/apps/ezdb/manifest.json"
	defaultRepoOwner   = "devpulse-tools"
	defaultRepoName    = "drivers"
)

// Load reads config from environment variables, applies defaults and validates.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return def
	}

	parseInt := func(key string, def int) int {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n
			}
		}
		return def
	}

	parseDur := func(key string, def time.Duration) time.Duration {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				return d
			}
		}
		return def
	}

	parseFloat := func(key string, def float64) float64 {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				return f
			}
		}
		return def
	}

	parseBool := func(key string, def bool) bool {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "y", "on":
				return true
			case "0", "false", "no", "n", "off":
				return false
			}
		}
		return def
	}

	cfg := Config{
		Source: migration.Endpoint{
			URL:         get("SOURCE_URL", ""),
			ServiceKey:  get("SOURCE_SERVICE_KEY", ""),
			DatabaseURL: get("SOURCE_DB_URL", ""),
		},
		Target: migration.Endpoint{
			URL:         get("TARGET_URL", ""),
			ServiceKey:  get("TARGET_SERVICE_KEY", ""),
			DatabaseURL: get("TARGET_DB_URL", ""),
		},
		RestoreArtifact: get("RESTORE_ARTIFACT", ""),

		VerifyTimeout: parseDur("VERIFY_TIMEOUT", verify.DefaultTimeout),
		StageTimeout:  parseDur("STAGE_TIMEOUT", migration.DefaultStageTimeout),

		Provider: strings.ToLower(strings.TrimSpace(get("BACKUP_PROVIDER", ""))),
		Azure: AzureConfig{
			Account:      get("AZURE_STORAGE_ACCOUNT", ""),
			Container:    get("AZURE_STORAGE_CONTAINER", ""),
			SASToken:     get("AZURE_STORAGE_SAS", ""),
			ClientID:     get("AZURE_CLIENT_ID", ""),
			ClientSecret: get("AZURE_CLIENT_SECRET", ""),
			TenantID:     get("AZURE_TENANT_ID", ""),
		},

		Driver: DriverConfig{
			Package:     get("DRIVER_PACKAGE", ""),
			ManifestURL: get("DRIVER_MANIFEST_URL", defaultManifestURL),
			Channel:     strings.ToLower(get("DRIVER_CHANNEL", "stable")),
			RepoOwner:   get("DRIVER_REPO_OWNER", defaultRepoOwner),
			RepoName:    get("DRIVER_REPO_NAME", defaultRepoName),
		},

		RetryMaxAttempts:  parseInt("RETRY_MAX_ATTEMPTS", retry.Default.MaxAttempts),
		RetryInitialDelay: parseDur("RETRY_INITIAL_DELAY", retry.Default.InitialDelay),
		RetryMaxDelay:     parseDur("RETRY_MAX_DELAY", retry.Default.MaxDelay),
		RetryMultiplier:   parseFloat("RETRY_MULTIPLIER", retry.Default.Multiplier),
		RetryEnableJitter: parseBool("RETRY_JITTER", retry.Default.Jitter),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks provider-specific requirements. Endpoint requirements are
// operation-dependent and checked by the orchestrator instead.
func (c *Config) validate() error {
	switch c.Provider {
	case "":
		// Offsite replication disabled.
	case "azure":
		if c.Azure.Account == "" || c.Azure.Container == "" {
			return errors.New("azure: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_CONTAINER are required")
		}
		// Accept SAS or SP (ClientID/Secret/Tenant); neither still allows MSI.
	default:
		return errors.New("unsupported provider: " + c.Provider)
	}
	return nil
}

// RetryOptions converts retry-related config values to retry.Options.
func (c Config) RetryOptions() retry.Options {
	return retry.Options{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryEnableJitter,
	}
}

// OperationConfig builds the immutable per-run input.
func (c Config) OperationConfig() migration.OperationConfig {
	return migration.OperationConfig{
		Source:       c.Source,
		Target:       c.Target,
		ArtifactPath: c.RestoreArtifact,
	}
}
