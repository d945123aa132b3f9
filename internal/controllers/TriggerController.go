package controllers

import (
	"complywatch/internal/providers"
	"complywatch/internal/services"
	"complywatch/internal/structures"
	"net/http"
	"time"
)

// TriggerController exposes the scheduler entry points to an external cron.
type TriggerController struct {
	conf    *structures.Config
	clock   providers.Clock
	logger  providers.Logger
	scans   services.ScanTriggerServiceInterface
	alerts  services.AlertServiceInterface
	digests services.DigestServiceInterface
}

func NewTriggerController(conf *structures.Config, clock providers.Clock, logger providers.Logger, scans services.ScanTriggerServiceInterface,
	alerts services.AlertServiceInterface, digests services.DigestServiceInterface) *TriggerController {
	return &TriggerController{
		conf:    conf,
		clock:   clock,
		logger:  logger,
		scans:   scans,
		alerts:  alerts,
		digests: digests,
	}
}

func (tc *TriggerController) RunScans(w http.ResponseWriter, r *http.Request) {
	tc.extendWriteDeadline(w)
	result, err := tc.scans.RunDueWebsiteScans(r.Context(), tc.clock.Now())
	if err != nil {
		writeError(w, tc.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (tc *TriggerController) RunAlerts(w http.ResponseWriter, r *http.Request) {
	tc.extendWriteDeadline(w)
	now := tc.clock.Now()
	since, ok := parseSince(w, r, tc.conf.Alerts.WindowStart(now))
	if !ok {
		return
	}
	result, err := tc.alerts.EvaluateScheduledAlerts(r.Context(), since, now)
	if err != nil {
		writeError(w, tc.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (tc *TriggerController) RunDigest(w http.ResponseWriter, r *http.Request) {
	tc.extendWriteDeadline(w)
	now := tc.clock.Now()
	since, ok := parseSince(w, r, tc.conf.Digest.WindowStart(now))
	if !ok {
		return
	}
	result, err := tc.digests.SendWeeklyMonitoringEmails(r.Context(), since, now)
	if err != nil {
		writeError(w, tc.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// extendWriteDeadline lifts the server write timeout for the length of a
// pass, whose response is only written once every website was handled.
func (tc *TriggerController) extendWriteDeadline(w http.ResponseWriter) {
	deadline := time.Now().Add(tc.conf.Trigger.PassBudget())
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
		tc.logger.Debugf(providers.TypeHTTP, "Write deadline not extended: %s", err)
	}
}

func parseSince(w http.ResponseWriter, r *http.Request, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return fallback, true
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, "since must be an RFC3339 timestamp", http.StatusBadRequest)
		return time.Time{}, false
	}
	return since, true
}
