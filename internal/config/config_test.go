package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file anywhere on the search path: everything comes from
	// the defaults. The pool layer relies on the database timeouts and
	// lifetimes being non-zero here.
	cfg, err := Load("does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 20, cfg.Database.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Database.MaxConnIdleTime)

	assert.False(t, cfg.Redis.Enabled)

	assert.Equal(t, 60*time.Second, cfg.Redemption.UserLockTTL)
	assert.Equal(t, 30*time.Second, cfg.Redemption.TicketLockTTL)
	assert.Equal(t, 60*time.Second, cfg.Redemption.MinInterval)
	assert.Equal(t, 30*time.Minute, cfg.Redemption.SessionTimeout)
	assert.Equal(t, "UTC", cfg.Redemption.Timezone)
	assert.True(t, cfg.Redemption.RateFailOpen)
	assert.Equal(t, time.Minute, cfg.Redemption.ReconcileInterval)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "svc", Password: "secret", Name: "spins",
	}
	assert.Equal(t, "postgres://svc:secret@db:5433/spins?sslmode=disable", d.DSN())
}

func TestLocation(t *testing.T) {
	r := RedemptionConfig{Timezone: "UTC"}
	loc, err := r.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	r.Timezone = "Mars/Olympus"
	_, err = r.Location()
	assert.Error(t, err)
}
