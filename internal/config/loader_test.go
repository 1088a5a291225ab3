package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.DBName != "caz_register" || cfg.Database.Port != 5432 {
		t.Fatalf("unexpected database defaults %+v", cfg.Database)
	}
	if cfg.Register.MaxErrors != 10 || cfg.Register.MaxLineLength != 210 {
		t.Fatalf("unexpected register defaults %+v", cfg.Register)
	}
	if cfg.Register.JobTimeout != 30*time.Minute {
		t.Fatalf("expected 30m job timeout, got %s", cfg.Register.JobTimeout)
	}
	if cfg.Export.PresignExpiry != 24*time.Hour {
		t.Fatalf("expected 24h presign expiry, got %s", cfg.Export.PresignExpiry)
	}
	if cfg.Redis.Enabled() || cfg.Kafka.Enabled() {
		t.Fatalf("publishers must be disabled by default")
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := strings.Join([]string{
		"database:",
		"  host: db.internal",
		"export:",
		"  destination: s3",
		"  bucket: from-file",
		"register:",
		"  job_timeout: 5m",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CAZ_EXPORT_BUCKET", "from-env")
	t.Setenv("CAZ_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Fatalf("expected host from file, got %q", cfg.Database.Host)
	}
	if cfg.Export.Bucket != "from-env" {
		t.Fatalf("expected environment to win, got %q", cfg.Export.Bucket)
	}
	if cfg.Register.JobTimeout != 5*time.Minute {
		t.Fatalf("expected 5m timeout, got %s", cfg.Register.JobTimeout)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{}
	cfg.Export.Destination = "ftp"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{"database.host", "http.addr", "register.max_errors", `"ftp"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}
