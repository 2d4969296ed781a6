package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"DB_DSN":         "postgres://localhost/lessons",
		"PAYMENT_SECRET": "secret",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.RescheduleDeadline)
	assert.Equal(t, 2, cfg.MaxReschedulePerLesson)
	assert.Equal(t, 30, cfg.PackageGraceDays)
	assert.True(t, cfg.ReleaseSlotOnReschedule)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)

	require.Len(t, cfg.Pricing.CommissionTiers, 3)
	assert.True(t, cfg.Pricing.CommissionTiers[0].Rate.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, cfg.Pricing.StopajRate.Equal(decimal.RequireFromString("0.20")))
	assert.True(t, cfg.Pricing.RoundingIncrement.Equal(decimal.NewFromInt(50)))
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["ENV"] = "production"
	env["RESCHEDULE_DEADLINE_HOURS"] = "48"
	env["MAX_RESCHEDULE_PER_LESSON"] = "3"
	env["RELEASE_SLOT_ON_RESCHEDULE"] = "false"
	env["NOTIFY_TIMEOUT"] = "3s"
	env["COMMISSION_TIERS"] = "0-9:0.30,10-:0.10"

	cfg, err := FromEnv(envMap(env))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 48*time.Hour, cfg.RescheduleDeadline)
	assert.Equal(t, 3, cfg.MaxReschedulePerLesson)
	assert.False(t, cfg.ReleaseSlotOnReschedule)
	assert.Equal(t, 3*time.Second, cfg.NotifyTimeout)
	require.Len(t, cfg.Pricing.CommissionTiers, 2)
	assert.Equal(t, 10, cfg.Pricing.CommissionTiers[1].MinLessons)
}

func TestFromEnv_RequiredFields(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"PAYMENT_SECRET": "x"}))
	require.ErrorContains(t, err, "DB_DSN")

	_, err = FromEnv(envMap(map[string]string{"DB_DSN": "x"}))
	require.ErrorContains(t, err, "PAYMENT_SECRET")
}

func TestFromEnv_BadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"not a number", "MAX_RESCHEDULE_PER_LESSON", "two"},
		{"bad duration", "NOTIFY_TIMEOUT", "soon"},
		{"bad bool", "RELEASE_SLOT_ON_RESCHEDULE", "maybe"},
		{"bad decimal", "VAT_RATE", "twenty"},
		{"gap in tiers", "COMMISSION_TIERS", "0-49:0.25,60-:0.20"},
		{"negative limit", "MAX_RESCHEDULE_PER_LESSON", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.val
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("0-49:0.25, 50-199:0.20, 200-:0.15")
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	assert.Equal(t, 0, tiers[0].MinLessons)
	assert.Equal(t, 49, tiers[0].MaxLessons)
	assert.Equal(t, 200, tiers[2].MinLessons)
	assert.Equal(t, -1, tiers[2].MaxLessons)
	assert.True(t, tiers[2].Rate.Equal(decimal.RequireFromString("0.15")))

	_, err = ParseTiers("")
	assert.Error(t, err)
	_, err = ParseTiers("0-49")
	assert.Error(t, err)
	_, err = ParseTiers("a-49:0.1")
	assert.Error(t, err)
}
