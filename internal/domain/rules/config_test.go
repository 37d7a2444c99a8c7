package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5000.0, cfg.AutoApproveThreshold)
	assert.Equal(t, 25000.0, cfg.ManagerThreshold)
	assert.Equal(t, 100000.0, cfg.DirectorThreshold)
	assert.Equal(t, 0.02, cfg.TolerancePercentage)
	assert.Equal(t, 365, cfg.MaxInvoiceAgeDays)
	assert.Equal(t, 90, cfg.DuplicateWindowDays)
	assert.Equal(t, 48, cfg.SLAFor(SLAManager))
	assert.Equal(t, 24, cfg.SLAFor(SLADirector))
	assert.Equal(t, 8, cfg.SLAFor(SLAExecutive))
	assert.Equal(t, 4, cfg.SLAFor(SLACritical))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:          "manager below auto",
			mutate:        func(c *Config) { c.ManagerThreshold = 1000 },
			errorContains: "manager_threshold",
		},
		{
			name:          "director below manager",
			mutate:        func(c *Config) { c.DirectorThreshold = 20000 },
			errorContains: "director_threshold",
		},
		{
			name:          "tolerance out of range",
			mutate:        func(c *Config) { c.TolerancePercentage = 1.5 },
			errorContains: "tolerance_percentage",
		},
		{
			name:          "max below min",
			mutate:        func(c *Config) { c.MaxAmount = 0.001 },
			errorContains: "max_amount",
		},
		{
			name:          "missing sla entry",
			mutate:        func(c *Config) { delete(c.SLAHours, SLADirector) },
			errorContains: "sla_hours.director",
		},
		{
			name:          "executive slower than director",
			mutate:        func(c *Config) { c.SLAHours[SLAExecutive] = 30 },
			errorContains: "sla_hours.executive",
		},
		{
			name:          "critical not shortest",
			mutate:        func(c *Config) { c.SLAHours[SLACritical] = 12 },
			errorContains: "sla_hours.critical",
		},
		{
			name:          "zero age window",
			mutate:        func(c *Config) { c.MaxInvoiceAgeDays = 0 },
			errorContains: "max_invoice_age_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConfig_Tolerance(t *testing.T) {
	cfg := DefaultConfig()

	assert.InDelta(t, 2.0, cfg.Tolerance(100), 1e-9)
	assert.InDelta(t, 2.0, cfg.Tolerance(-100), 1e-9)
	assert.Equal(t, 0.0, cfg.Tolerance(0))
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.SLAHours[SLAManager] = 1

	assert.Equal(t, 48, cfg.SLAHours[SLAManager])
}
