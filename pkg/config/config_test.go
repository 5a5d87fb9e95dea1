package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Waitlist.OfferTTL)
	assert.Equal(t, "*/5 * * * *", cfg.Waitlist.SweepSchedule)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SessionTTL)
	assert.Equal(t, 5, cfg.Notifications.RatePerSecond)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("WAITLIST_OFFER_TTL", "2h")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("SESSION_CACHE_TTL", "bogus")

	cfg := fromViper(v)
	assert.Equal(t, 2*time.Hour, cfg.Waitlist.OfferTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SessionTTL)
}

func TestSplitAndTrimEmpty(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
}
