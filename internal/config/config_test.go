package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_LocalDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, "local", cfg.BuildTarget)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.Equal(t, 10*time.Minute, cfg.PendingTTL)
	require.Equal(t, 15*time.Minute, cfg.DialogueTTL)
	require.Equal(t, time.Hour, cfg.SweepInterval)
	require.Equal(t, 0.5, cfg.ClarifyThreshold)
	require.Equal(t, 0.95, cfg.SkipConfirmThreshold)
}

func TestNew_CloudTargetDerivesPostgres(t *testing.T) {
	t.Setenv("MASARIF_BUILD_TARGET", "cloud")
	t.Setenv("MASARIF_POSTGRES_DSN", "postgres://localhost/masarif")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DBDriver)
}

func TestNew_CloudTargetWithoutDSNFails(t *testing.T) {
	t.Setenv("MASARIF_BUILD_TARGET", "cloud")

	_, err := New()
	require.Error(t, err)
}

func TestNew_UnknownBuildTargetFails(t *testing.T) {
	t.Setenv("MASARIF_BUILD_TARGET", "on-prem")

	_, err := New()
	require.Error(t, err)
}

func TestNew_ExplicitDriverOverridesTarget(t *testing.T) {
	t.Setenv("MASARIF_BUILD_TARGET", "cloud")
	t.Setenv("MASARIF_DB_DRIVER", "sqlite")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DBDriver)
}

func TestResolveDefaults_ThresholdOrdering(t *testing.T) {
	cfg := Config{
		BuildTarget:          "local",
		DBDriver:             "auto",
		ClarifyThreshold:     0.9,
		SkipConfirmThreshold: 0.6,
	}
	require.Error(t, cfg.ResolveDefaults())
}
