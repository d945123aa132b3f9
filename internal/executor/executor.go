package executor

import (
	"bytes"
	"complywatch/internal/models"
	"complywatch/internal/providers"
	"complywatch/internal/services"
	"complywatch/internal/structures"
	"context"
	"fmt"
	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"io"
	"net/http"
	"time"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

type dispatchRequest struct {
	WebsiteID string          `json:"websiteId"`
	UserID    string          `json:"userId"`
	URL       string          `json:"url"`
	Plan      models.PlanTier `json:"plan"`
}

// HTTPExecutor enqueues scans on the scanner service. Consecutive failures
// open a circuit breaker so a dead scanner fails dispatches fast instead of
// holding claims until the timeout.
type HTTPExecutor struct {
	endpoint string
	token    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   providers.Logger
}

func (e *HTTPExecutor) Dispatch(ctx context.Context, website models.Website) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.post(ctx, website)
	})
	return err
}

func (e *HTTPExecutor) post(ctx context.Context, website models.Website) error {
	body, err := json.Marshal(dispatchRequest{
		WebsiteID: website.ID,
		UserID:    website.UserID,
		URL:       website.URL,
		Plan:      website.Plan,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("scanner responded %d for website %s", resp.StatusCode, website.ID)
	}
	return nil
}

// LogExecutor only logs. It is used when no scanner endpoint is configured.
type LogExecutor struct {
	logger providers.Logger
}

func (e *LogExecutor) Dispatch(_ context.Context, website models.Website) error {
	e.logger.Infof(providers.TypeScan, "Scan requested for website %s (%s)", website.ID, website.URL)
	return nil
}

func NewExecutor(conf *structures.Config, logger providers.Logger) services.ScanExecutorInterface {
	if conf.Scan.ExecutorURL == "" {
		logger.Warnf(providers.TypeApp, "No scanner endpoint configured, scans are only logged")
		return &LogExecutor{logger: logger}
	}

	failures := conf.Scan.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := conf.Scan.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scanner",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf(providers.TypeScan, "Circuit %s: %s -> %s", name, from, to)
		},
	})

	return &HTTPExecutor{
		endpoint: conf.Scan.ExecutorURL,
		token:    conf.Scan.ExecutorToken,
		client:   &http.Client{},
		breaker:  breaker,
		logger:   logger,
	}
}
