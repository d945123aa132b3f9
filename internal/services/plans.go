package services

import (
	"complywatch/internal/models"
	"complywatch/internal/providers"
)

// resolvePlan looks up a tier and logs unknown tiers as a configuration error.
// The free plan is used in their place.
func resolvePlan(catalog *models.PlanCatalog, logger providers.Logger, t providers.TypeEnum, tier models.PlanTier, owner string) models.PlanConfig {
	plan, ok := catalog.Resolve(tier)
	if !ok {
		logger.Errorf(t, "Unknown plan tier %q on %s, treating as %s", tier, owner, models.PlanFree)
	}
	return plan
}
