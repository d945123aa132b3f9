package models

import (
	"fmt"
	"strings"
)

type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanStarter  PlanTier = "starter"
	PlanBusiness PlanTier = "business"
	PlanAgency   PlanTier = "agency"
)

type FrequencyClass string

const (
	FrequencyOnce       FrequencyClass = "once"
	FrequencyDaily      FrequencyClass = "daily"
	FrequencyWeekly     FrequencyClass = "weekly"
	FrequencyContinuous FrequencyClass = "continuous"
)

// ContinuousIntervalMinutes is the nominal spacing shown for continuous plans.
// The effective spacing is the scheduler's claim window.
const ContinuousIntervalMinutes = 15

// IntervalMinutes returns the nominal distance between two scans. Zero means
// the class never schedules a follow-up scan.
func (f FrequencyClass) IntervalMinutes() int {
	switch f {
	case FrequencyDaily:
		return 24 * 60
	case FrequencyWeekly:
		return 7 * 24 * 60
	case FrequencyContinuous:
		return ContinuousIntervalMinutes
	default:
		return 0
	}
}

type AlertMode string

const (
	AlertModeNone          AlertMode = "none"
	AlertModeScheduledOnly AlertMode = "scheduled_only"
	AlertModeRealtime      AlertMode = "realtime"
)

// Unlimited marks a plan without a website quota.
const Unlimited = -1

type AlertingConfig struct {
	Enabled       bool      `json:"enabled"`
	Mode          AlertMode `json:"mode"`
	DropThreshold int       `json:"drop_threshold"`
	CooldownHours int       `json:"cooldown_hours"`
}

type PlanConfig struct {
	Tier         PlanTier       `json:"tier"`
	WebsiteQuota int            `json:"website_quota"`
	Frequency    FrequencyClass `json:"frequency"`
	Alerting     AlertingConfig `json:"alerting"`
}

// AllowsWebsites reports whether an owner may monitor n websites on this plan.
func (p PlanConfig) AllowsWebsites(n int) bool {
	return p.WebsiteQuota == Unlimited || n <= p.WebsiteQuota
}

type PlanCatalog struct {
	plans map[PlanTier]PlanConfig
}

// NewPlanCatalog builds the read-only tier table. It is constructed once at
// startup and only read afterwards.
func NewPlanCatalog() *PlanCatalog {
	return &PlanCatalog{plans: map[PlanTier]PlanConfig{
		PlanFree: {
			Tier:         PlanFree,
			WebsiteQuota: 1,
			Frequency:    FrequencyOnce,
			Alerting:     AlertingConfig{Enabled: false, Mode: AlertModeNone},
		},
		PlanStarter: {
			Tier:         PlanStarter,
			WebsiteQuota: 3,
			Frequency:    FrequencyWeekly,
			Alerting:     AlertingConfig{Enabled: true, Mode: AlertModeScheduledOnly, DropThreshold: 10, CooldownHours: 24},
		},
		PlanBusiness: {
			Tier:         PlanBusiness,
			WebsiteQuota: 10,
			Frequency:    FrequencyDaily,
			Alerting:     AlertingConfig{Enabled: true, Mode: AlertModeRealtime, DropThreshold: 5, CooldownHours: 12},
		},
		PlanAgency: {
			Tier:         PlanAgency,
			WebsiteQuota: Unlimited,
			Frequency:    FrequencyContinuous,
			Alerting:     AlertingConfig{Enabled: true, Mode: AlertModeRealtime, DropThreshold: 1, CooldownHours: 2},
		},
	}}
}

// ParsePlanTier normalizes a stored tier name. Unknown names are reported
// with ok=false so the caller can log them before falling back.
func ParsePlanTier(raw string) (PlanTier, bool) {
	tier := PlanTier(strings.ToLower(strings.TrimSpace(raw)))
	switch tier {
	case PlanFree, PlanStarter, PlanBusiness, PlanAgency:
		return tier, true
	}
	return PlanFree, false
}

// Resolve returns the entitlements for a tier. Unknown tiers get the free
// plan so a bad record never gains automation or alerting.
func (c *PlanCatalog) Resolve(tier PlanTier) (PlanConfig, bool) {
	if plan, ok := c.plans[tier]; ok {
		return plan, true
	}
	return c.plans[PlanFree], false
}

func (c *PlanCatalog) Tiers() []PlanTier {
	return []PlanTier{PlanFree, PlanStarter, PlanBusiness, PlanAgency}
}

func (c *PlanCatalog) All() []PlanConfig {
	out := make([]PlanConfig, 0, len(c.plans))
	for _, tier := range c.Tiers() {
		out = append(out, c.plans[tier])
	}
	return out
}

func (c *PlanCatalog) Validate() error {
	for _, tier := range c.Tiers() {
		plan, ok := c.plans[tier]
		if !ok {
			return fmt.Errorf("plan %q missing from catalog", tier)
		}
		a := plan.Alerting
		if a.Mode == AlertModeNone && a.Enabled {
			return fmt.Errorf("plan %q: alerting enabled with mode none", tier)
		}
		if a.Mode != AlertModeNone && !a.Enabled {
			return fmt.Errorf("plan %q: alerting mode %q but disabled", tier, a.Mode)
		}
		if a.DropThreshold < 0 {
			return fmt.Errorf("plan %q: negative drop threshold", tier)
		}
		if a.CooldownHours < 0 {
			return fmt.Errorf("plan %q: negative cooldown", tier)
		}
		if plan.WebsiteQuota < 0 && plan.WebsiteQuota != Unlimited {
			return fmt.Errorf("plan %q: invalid website quota %d", tier, plan.WebsiteQuota)
		}
	}
	return nil
}
