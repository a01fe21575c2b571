package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_ENV_PATH", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/magicpixa?parseTime=true")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD", "s3cret-admin")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Analyze)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Generate)
	assert.Equal(t, 10, cfg.Credits.GuestGrant)
	assert.Equal(t, "test@magicpixa.com", cfg.Credits.TestAccountEmail)
	assert.Equal(t, int64(5*1024*1024), cfg.Intake.MaxBytes)
	assert.Equal(t, 1920, cfg.Intake.MaxDimension)
	assert.Equal(t, 80, cfg.Intake.JPEGQuality)
	assert.Equal(t, "s3cret-admin", cfg.Auth.AdminPassword)
	assert.Equal(t, int64(50000000), cfg.Intake.MaxPixels)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "llama-3.1-sonar-large-128k-online", cfg.Perplexity.Model)

	photo, ok := cfg.Plans.Feature("photo-studio")
	require.True(t, ok)
	assert.Equal(t, 3, photo.Cost)
	colorizer, ok := cfg.Plans.Feature("colorizer")
	require.True(t, ok)
	assert.Equal(t, 2, colorizer.Cost)

	free, ok := cfg.Plans.Plan(cfg.Plans.DefaultPlan)
	require.True(t, ok)
	assert.Equal(t, 10, free.Credits)
	vip, ok := cfg.Plans.Plan(cfg.Plans.TestPlan)
	require.True(t, ok)
	assert.Equal(t, 999999, vip.Credits)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("CONFIG_ENV_PATH", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MYSQL_DSN")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}

func TestLoadRequiresAdminPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}

func TestLoadEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GUEST_CREDITS=4\nPERPLEXITY_BASE_URL=api.example.com/\n"), 0o600))
	t.Setenv("CONFIG_ENV_PATH", path)
	for _, key := range []string{"GUEST_CREDITS", "PERPLEXITY_BASE_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Credits.GuestGrant)
	assert.Equal(t, "https://api.example.com", cfg.Perplexity.BaseURL)
}

func TestLoadUnknownArchiveDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("ARCHIVE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARCHIVE_DRIVER")
}

func TestParseCatalogue(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "plans: []", wantErr: "empty"},
		{name: "negative credits", yaml: "plans:\n  - name: free\n    credits: -1\n", wantErr: "negative"},
		{name: "unknown default", yaml: "default_plan: gold\nplans:\n  - name: free\n    credits: 1\n", wantErr: "default plan"},
		{name: "zero cost", yaml: "plans:\n  - name: free\n    credits: 1\nfeatures:\n  - name: x\n    cost: 0\n", wantErr: "cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogue([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	c, err := ParseCatalogue([]byte("plans:\n  - name: basic\n    credits: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "basic", c.DefaultPlan)
}
