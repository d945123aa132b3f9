package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCatalog_Validate(t *testing.T) {
	require.NoError(t, NewPlanCatalog().Validate())
}

func TestPlanCatalog_Validate_RejectsEnabledNoneMode(t *testing.T) {
	c := NewPlanCatalog()
	free := c.plans[PlanFree]
	free.Alerting.Enabled = true
	c.plans[PlanFree] = free
	assert.Error(t, c.Validate())
}

func TestPlanCatalog_Validate_RejectsNegativeThreshold(t *testing.T) {
	c := NewPlanCatalog()
	biz := c.plans[PlanBusiness]
	biz.Alerting.DropThreshold = -1
	c.plans[PlanBusiness] = biz
	assert.Error(t, c.Validate())
}

func TestPlanCatalog_Resolve(t *testing.T) {
	c := NewPlanCatalog()

	biz, ok := c.Resolve(PlanBusiness)
	require.True(t, ok)
	assert.Equal(t, FrequencyDaily, biz.Frequency)
	assert.Equal(t, AlertModeRealtime, biz.Alerting.Mode)
	assert.Equal(t, 5, biz.Alerting.DropThreshold)
	assert.Equal(t, 12, biz.Alerting.CooldownHours)

	agency, ok := c.Resolve(PlanAgency)
	require.True(t, ok)
	assert.Equal(t, FrequencyContinuous, agency.Frequency)
	assert.Equal(t, 1, agency.Alerting.DropThreshold)
	assert.Equal(t, 2, agency.Alerting.CooldownHours)
}

func TestPlanCatalog_Resolve_UnknownFallsBackToFree(t *testing.T) {
	c := NewPlanCatalog()
	plan, ok := c.Resolve(PlanTier("enterprise"))
	assert.False(t, ok)
	assert.Equal(t, PlanFree, plan.Tier)
	assert.False(t, plan.Alerting.Enabled)
	assert.Equal(t, AlertModeNone, plan.Alerting.Mode)
	assert.Equal(t, FrequencyOnce, plan.Frequency)
}

func TestParsePlanTier(t *testing.T) {
	tier, ok := ParsePlanTier(" Business ")
	assert.True(t, ok)
	assert.Equal(t, PlanBusiness, tier)

	tier, ok = ParsePlanTier("gold")
	assert.False(t, ok)
	assert.Equal(t, PlanFree, tier)
}

func TestPlanConfig_AllowsWebsites(t *testing.T) {
	c := NewPlanCatalog()
	free, _ := c.Resolve(PlanFree)
	assert.True(t, free.AllowsWebsites(1))
	assert.False(t, free.AllowsWebsites(2))

	agency, _ := c.Resolve(PlanAgency)
	assert.True(t, agency.AllowsWebsites(10000))
}

func TestPlanCatalog_AllOrdered(t *testing.T) {
	all := NewPlanCatalog().All()
	require.Len(t, all, 4)
	assert.Equal(t, PlanFree, all[0].Tier)
	assert.Equal(t, PlanAgency, all[3].Tier)
}

func TestDigestPayload_HasActivity(t *testing.T) {
	p := &DigestPayload{Websites: []WebsiteDigest{{WebsiteID: "w1"}}}
	assert.False(t, p.HasActivity())
	p.Websites = append(p.Websites, WebsiteDigest{WebsiteID: "w2", Scans: 1})
	assert.True(t, p.HasActivity())
}
