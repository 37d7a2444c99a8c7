package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/domain/rules"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, rules.DefaultConfig(), cfg.Rules)
	assert.Equal(t, time.Minute, cfg.Worker.SLAPollInterval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  driver: memory
rules:
  auto_approve_threshold: 1000
  require_po_for_auto_approval: true
  sla_hours:
    manager: 72
approvers:
  manager: manager@example.com
worker:
  sla_poll_interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 1000.0, cfg.Rules.AutoApproveThreshold)
	assert.True(t, cfg.Rules.RequirePOForAutoApproval)
	assert.Equal(t, 72, cfg.Rules.SLAHours[rules.SLAManager])
	assert.Equal(t, 24, cfg.Rules.SLAHours[rules.SLADirector], "unset SLA entries keep their defaults")
	assert.Equal(t, "manager@example.com", cfg.Approvers["manager"])
	assert.Equal(t, 30*time.Second, cfg.Worker.SLAPollInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "s3cret", cfg.Webhook.Secret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		isRules bool
	}{
		{"thresholds out of order", "rules:\n  manager_threshold: 100\n  auto_approve_threshold: 500\n", true},
		{"sla not tightening", "rules:\n  sla_hours:\n    executive: 100\n", true},
		{"unknown driver", "storage:\n  driver: postgres\n", false},
		{"unknown approver level", "approvers:\n  auto: bot@example.com\n", false},
		{"bad port", "server:\n  port: 70000\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.isRules, errors.Is(err, rules.ErrInvalidConfig))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
