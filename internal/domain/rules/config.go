// Package rules holds the business rule table shared by validation and routing.
// A Config is built once, validated, and then only read.
package rules

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid rule configuration")

// Level names used as keys of the SLA table
const (
	SLAManager   = "manager"
	SLADirector  = "director"
	SLAExecutive = "executive"
	SLAException = "exception"
	SLACritical  = "critical"
)

// Config is the validated rule table
type Config struct {
	MinAmount                float64        `mapstructure:"min_amount" json:"min_amount"`
	MaxAmount                float64        `mapstructure:"max_amount" json:"max_amount"`
	AutoApproveThreshold     float64        `mapstructure:"auto_approve_threshold" json:"auto_approve_threshold"`
	ManagerThreshold         float64        `mapstructure:"manager_threshold" json:"manager_threshold"`
	DirectorThreshold        float64        `mapstructure:"director_threshold" json:"director_threshold"`
	TolerancePercentage      float64        `mapstructure:"tolerance_percentage" json:"tolerance_percentage"`
	MaxInvoiceAgeDays        int            `mapstructure:"max_invoice_age_days" json:"max_invoice_age_days"`
	DuplicateWindowDays      int            `mapstructure:"duplicate_window_days" json:"duplicate_window_days"`
	RequirePOForAutoApproval bool           `mapstructure:"require_po_for_auto_approval" json:"require_po_for_auto_approval"`
	SLAHours                 map[string]int `mapstructure:"sla_hours" json:"sla_hours"`
}

// DefaultConfig returns the standard P2P rule table
func DefaultConfig() Config {
	return Config{
		MinAmount:                0.01,
		MaxAmount:                10_000_000,
		AutoApproveThreshold:     5000,
		ManagerThreshold:         25000,
		DirectorThreshold:        100000,
		TolerancePercentage:      0.02,
		MaxInvoiceAgeDays:        365,
		DuplicateWindowDays:      90,
		RequirePOForAutoApproval: false,
		SLAHours: map[string]int{
			SLAManager:   48,
			SLADirector:  24,
			SLAExecutive: 8,
			SLAException: 24,
			SLACritical:  4,
		},
	}
}

// Validate checks that the thresholds form a consistent, ascending table.
// Routing under a config that fails here is undefined, so callers must treat
// the error as fatal.
func (c Config) Validate() error {
	if c.MinAmount <= 0 {
		return fmt.Errorf("%w: min_amount must be positive, got %.2f", ErrInvalidConfig, c.MinAmount)
	}
	if c.MaxAmount <= c.MinAmount {
		return fmt.Errorf("%w: max_amount (%.2f) must be greater than min_amount (%.2f)", ErrInvalidConfig, c.MaxAmount, c.MinAmount)
	}
	if c.AutoApproveThreshold < 0 {
		return fmt.Errorf("%w: auto_approve_threshold must not be negative", ErrInvalidConfig)
	}
	if c.ManagerThreshold < c.AutoApproveThreshold {
		return fmt.Errorf("%w: manager_threshold (%.2f) must not be below auto_approve_threshold (%.2f)",
			ErrInvalidConfig, c.ManagerThreshold, c.AutoApproveThreshold)
	}
	if c.DirectorThreshold < c.ManagerThreshold {
		return fmt.Errorf("%w: director_threshold (%.2f) must not be below manager_threshold (%.2f)",
			ErrInvalidConfig, c.DirectorThreshold, c.ManagerThreshold)
	}
	if c.TolerancePercentage < 0 || c.TolerancePercentage >= 1 {
		return fmt.Errorf("%w: tolerance_percentage must be in [0, 1), got %v", ErrInvalidConfig, c.TolerancePercentage)
	}
	if c.MaxInvoiceAgeDays <= 0 {
		return fmt.Errorf("%w: max_invoice_age_days must be positive", ErrInvalidConfig)
	}
	if c.DuplicateWindowDays <= 0 {
		return fmt.Errorf("%w: duplicate_window_days must be positive", ErrInvalidConfig)
	}

	for _, key := range []string{SLAManager, SLADirector, SLAExecutive, SLAException, SLACritical} {
		if c.SLAHours[key] <= 0 {
			return fmt.Errorf("%w: sla_hours.%s must be positive", ErrInvalidConfig, key)
		}
	}

	// Deadlines tighten as amount and severity rise.
	if c.SLAHours[SLADirector] > c.SLAHours[SLAManager] {
		return fmt.Errorf("%w: sla_hours.director must not exceed sla_hours.manager", ErrInvalidConfig)
	}
	if c.SLAHours[SLAExecutive] > c.SLAHours[SLADirector] {
		return fmt.Errorf("%w: sla_hours.executive must not exceed sla_hours.director", ErrInvalidConfig)
	}
	if c.SLAHours[SLACritical] > c.SLAHours[SLAExecutive] || c.SLAHours[SLACritical] > c.SLAHours[SLAException] {
		return fmt.Errorf("%w: sla_hours.critical must be the shortest deadline", ErrInvalidConfig)
	}

	return nil
}

// Tolerance returns the absolute deviation allowed against a reference amount
func (c Config) Tolerance(reference float64) float64 {
	if reference < 0 {
		reference = -reference
	}
	return c.TolerancePercentage * reference
}

// SLAFor returns the configured hours for a level key, or 0 if none
func (c Config) SLAFor(key string) int {
	return c.SLAHours[key]
}

// Clone returns a deep copy so the SLA map is never shared between holders
func (c Config) Clone() Config {
	out := c
	out.SLAHours = make(map[string]int, len(c.SLAHours))
	for k, v := range c.SLAHours {
		out.SLAHours[k] = v
	}
	return out
}
