package providers

import "complywatch/internal/models"

func NewPlanCatalogProvider(logger Logger) (*models.PlanCatalog, error) {
	catalog := models.NewPlanCatalog()
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	for _, plan := range catalog.All() {
		logger.Debugf(TypeApp, "Plan %s: quota=%d frequency=%s alerting=%s", plan.Tier, plan.WebsiteQuota, plan.Frequency, plan.Alerting.Mode)
	}
	return catalog, nil
}
