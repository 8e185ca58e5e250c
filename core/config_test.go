package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")
		t.Setenv("CONFIG_DIR", t.TempDir())

		conf := NewConfig()
		assert.Equal(t, "DEV", conf.Env)
		assert.Equal(t, "Masomo", conf.AppName)
		assert.True(t, conf.Debug)
		assert.False(t, conf.TestMode)
		assert.Equal(t, "postgres", conf.Database.Engine)
		assert.True(t, conf.Database.DisableTLS)
		assert.False(t, conf.Database.IsConfigured())
		assert.Equal(t, mail.Address{Name: "Masomo", Address: "noreply@localhost"}, conf.DefaultFromEmail)
		assert.Empty(t, conf.ReportRecipients)
	})

	t.Run("env vars", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		t.Setenv("CONFIG_DIR", t.TempDir())
		t.Setenv("PROD_APPNAME", "ERP")
		t.Setenv("PROD_DATABASE_HOST", "db.internal")
		t.Setenv("PROD_DATABASE_PORT", "6543")
		t.Setenv("PROD_DATABASE_NAME", "erp")
		t.Setenv("PROD_REPORTRECIPIENTS", "Exams Cell <exams@college.edu>, hod@college.edu")

		conf := NewConfig()
		assert.Equal(t, "PROD", conf.Env)
		assert.Equal(t, "ERP", conf.AppName)
		assert.False(t, conf.Debug)
		assert.False(t, conf.Database.DisableTLS)
		assert.True(t, conf.Database.IsConfigured())
		assert.Equal(t, "db.internal:6543", conf.Database.Address())
		assert.Equal(t, []mail.Address{
			{Name: "Exams Cell", Address: "exams@college.edu"},
			{Address: "hod@college.edu"},
		}, conf.ReportRecipients)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("TEST_BUILD=abc123\n"), 0o600))
		t.Setenv("ENV", "test")
		t.Setenv("CONFIG_DIR", dir)
		t.Cleanup(func() { _ = os.Unsetenv("TEST_BUILD") })

		conf := NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.Equal(t, "abc123", conf.Build)
	})
}
