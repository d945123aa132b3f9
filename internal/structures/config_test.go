package structures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

func TestDigestWindowStart_AlignedToInterval(t *testing.T) {
	conf := DigestConfig{Interval: 7 * 24 * time.Hour, Lookback: 7 * 24 * time.Hour}

	a := conf.WindowStart(now)
	b := conf.WindowStart(now.Add(36 * time.Hour))
	assert.True(t, a.Equal(b), "runs in the same week share a window")
	assert.Equal(t, time.Monday, a.Weekday())
	assert.False(t, a.After(now.Add(-conf.Lookback)))

	next := conf.WindowStart(now.Add(7 * 24 * time.Hour))
	assert.Equal(t, 7*24*time.Hour, next.Sub(a))
}

func TestDigestWindowStart_DailyInterval(t *testing.T) {
	conf := DigestConfig{Interval: 24 * time.Hour, Lookback: 7 * 24 * time.Hour}

	assert.Equal(t, time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC), conf.WindowStart(now))
	assert.Equal(t, conf.WindowStart(now), conf.WindowStart(now.Add(5*time.Second)))
}

func TestAlertsWindowStart(t *testing.T) {
	conf := AlertsConfig{BatchInterval: time.Hour}

	assert.Equal(t, now.Add(-2*time.Hour), conf.WindowStart(now))
}

func TestTriggerPassBudget(t *testing.T) {
	assert.Equal(t, defaultPassTimeout, TriggerConfig{}.PassBudget())
	assert.Equal(t, time.Hour, TriggerConfig{PassTimeout: time.Hour}.PassBudget())
}
