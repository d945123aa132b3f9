package controllers

import (
	"complywatch/internal/models"
	"complywatch/internal/providers"
	"complywatch/internal/services"
	"complywatch/internal/storage"
	"errors"
	json "github.com/goccy/go-json"
	"net/http"
	"time"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type snapshotRequest struct {
	WebsiteID string    `json:"websiteId"`
	Score     *int      `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type ApiController struct {
	logger  providers.Logger
	alerts  services.AlertServiceInterface
	catalog *models.PlanCatalog
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, alerts services.AlertServiceInterface, catalog *models.PlanCatalog, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		alerts:  alerts,
		catalog: catalog,
		cache:   cache,
	}
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		writeError(w, ac.logger, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// ReceiveSnapshot is the scanner callback. Realtime plans are evaluated
// before the response is written.
func (ac *ApiController) ReceiveSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.WebsiteID == "" || payload.Score == nil {
		http.Error(w, "websiteId and score are required", http.StatusBadRequest)
		return
	}

	result, err := ac.alerts.ProcessSnapshot(r.Context(), payload.WebsiteID, *payload.Score, payload.CreatedAt)
	if err != nil && result == nil {
		writeError(w, ac.logger, err)
		return
	}
	if err != nil {
		ac.logger.Errorf(providers.TypeAlert, "Snapshot %s stored but alert evaluation failed: %s", result.Snapshot.ID, err)
	}
	writeJSON(w, http.StatusCreated, result)
}

func (ac *ApiController) GetPlans(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "plans", func() (any, error) {
		return ac.catalog.All(), nil
	})
}

func (ac *ApiController) GetAlerts(w http.ResponseWriter, r *http.Request) {
	websiteID := r.URL.Query().Get("website")
	if websiteID == "" {
		http.Error(w, "website is required", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, services.AlertsCacheKey(websiteID), func() (any, error) {
		alerts, err := ac.alerts.ListAlerts(r.Context(), websiteID)
		if alerts == nil && err == nil {
			alerts = []models.AlertRecord{}
		}
		return alerts, err
	})
}

func (ac *ApiController) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if _, err := ac.alerts.AcknowledgeAlert(r.Context(), id); err != nil {
		writeError(w, ac.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func writeError(w http.ResponseWriter, logger providers.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrWebsiteNotFound), errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidScore), errors.Is(err, services.ErrInvalidWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Errorf(providers.TypeHTTP, "Request failed: %s", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
