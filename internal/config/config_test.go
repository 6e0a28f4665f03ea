package config

import (
	"os"
	"testing"
	"time"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
	"github.com/EonsofStupid/EzDbMigrate/internal/verify"
)

// clearEnv unsets every variable Load reads, so ambient environment cannot
// leak into a test. Prior values are restored on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SOURCE_URL", "SOURCE_SERVICE_KEY", "SOURCE_DB_URL",
		"TARGET_URL", "TARGET_SERVICE_KEY", "TARGET_DB_URL",
		"RESTORE_ARTIFACT", "VERIFY_TIMEOUT", "STAGE_TIMEOUT",
		"BACKUP_PROVIDER",
		"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_CONTAINER", "AZURE_STORAGE_SAS",
		"AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET", "AZURE_TENANT_ID",
		"DRIVER_PACKAGE", "DRIVER_MANIFEST_URL", "DRIVER_CHANNEL",
		"DRIVER_REPO_OWNER", "DRIVER_REPO_NAME",
		"RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_DELAY", "RETRY_MAX_DELAY",
		"RETRY_MULTIPLIER", "RETRY_JITTER",
	} {
		if v, ok := os.LookupEnv(k); ok {
			k, v := k, v
			t.Cleanup(func() { _ = os.Setenv(k, v) })
			_ = os.Unsetenv(k)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "" {
		t.Fatalf("provider = %q, want disabled", cfg.Provider)
	}
	if cfg.VerifyTimeout != verify.DefaultTimeout {
		t.Fatalf("verify timeout = %v, want %v", cfg.VerifyTimeout, verify.DefaultTimeout)
	}
	if cfg.StageTimeout != migration.DefaultStageTimeout {
		t.Fatalf("stage timeout = %v, want %v", cfg.StageTimeout, migration.DefaultStageTimeout)
	}
	if cfg.Driver.Channel != "stable" {
		t.Fatalf("channel = %q, want stable", cfg.Driver.Channel)
	}
	if cfg.Driver.ManifestURL == "" {
		t.Fatal("manifest URL default missing")
	}
	ro := cfg.RetryOptions()
	if ro.MaxAttempts != 5 || ro.Multiplier != 2.0 {
		t.Fatalf("retry defaults = %+v", ro)
	}
}

func TestLoadEndpointsAndDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_URL", "https://src.example.co")
	t.Setenv("SOURCE_SERVICE_KEY", "src-key")
	t.Setenv("SOURCE_DB_URL", "postgresql://src")
	t.Setenv("TARGET_URL", "https://dst.example.co")
	t.Setenv("VERIFY_TIMEOUT", "3s")
	t.Setenv("STAGE_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := migration.Endpoint{URL: "https://src.example.co", ServiceKey: "src-key", DatabaseURL: "postgresql://src"}
	if cfg.Source != want {
		t.Fatalf("source = %+v, want %+v", cfg.Source, want)
	}
	if cfg.VerifyTimeout != 3*time.Second || cfg.StageTimeout != 90*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.VerifyTimeout, cfg.StageTimeout)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("VERIFY_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VerifyTimeout != verify.DefaultTimeout {
		t.Fatalf("verify timeout = %v, want default", cfg.VerifyTimeout)
	}
}

func TestLoadAzureRequiresAccountAndContainer(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKUP_PROVIDER", "azure")

	if _, err := Load(); err == nil {
		t.Fatal("azure provider without account/container accepted")
	}

	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_CONTAINER", "backups")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "azure" || cfg.Azure.Account != "acct" {
		t.Fatalf("azure config = %+v", cfg.Azure)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKUP_PROVIDER", "s3")

	if _, err := Load(); err == nil {
		t.Fatal("unknown provider accepted")
	}
}

func TestOperationConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_URL", "https://src.example.co")
	t.Setenv("RESTORE_ARTIFACT", "/backups/x.zip")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oc := cfg.OperationConfig()
	if oc.Source.URL != "https://src.example.co" || oc.ArtifactPath != "/backups/x.zip" {
		t.Fatalf("operation config = %+v", oc)
	}
}
