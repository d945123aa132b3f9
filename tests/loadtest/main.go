package main

import (
	"bytes"
	"complywatch/internal/models"
	"complywatch/internal/providers"
	"complywatch/internal/storage"
	"complywatch/internal/testutil"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	numWorkers   = 50
	testDuration = 10 * time.Second
	numUsers     = 100
	sitesPerUser = 5
)

var plans = []models.PlanTier{models.PlanFree, models.PlanStarter, models.PlanBusiness, models.PlanAgency}

var (
	baseURL  = flag.String("url", "http://127.0.0.1:18090", "daemon base URL")
	secret   = flag.String("secret", "", "trigger secret")
	seedPath = flag.String("seed", "", "write a memory-store state file with generated websites and exit")
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	flag.Parse()

	if *seedPath != "" {
		if err := writeSeed(*seedPath); err != nil {
			fmt.Println("seed failed:", err)
			return
		}
		fmt.Printf("Seeded %d users / %d websites into %s\n", numUsers, numUsers*sitesPerUser, *seedPath)
		return
	}

	fmt.Println("=== ComplyWatch Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Websites: %d\n\n", numWorkers, testDuration, numUsers*sitesPerUser)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(*baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Overlapping cron calls must never dispatch a website twice.
	fmt.Println("\n--- Phase 1: Overlapping scan triggers (POST /cron/scans) ---")
	var triggered atomic.Int64
	runPhase(testDuration/2, func(rng *rand.Rand) result {
		return doTrigger(&triggered)
	})
	fmt.Printf("  websites dispatched across all calls: %d\n", triggered.Load())

	fmt.Println("\n--- Phase 2: Scanner callbacks with reads (80% POST /snapshots, 20% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.80:
			return doSnapshot(rng)
		case r < 0.95:
			return doGetAlerts(rng)
		default:
			return doGetPlans()
		}
	})
}

func websiteID(user, site int) string {
	return fmt.Sprintf("site-%03d-%d", user, site)
}

func writeSeed(path string) error {
	store := storage.NewMemoryStore()
	for u := 0; u < numUsers; u++ {
		plan := plans[u%len(plans)]
		userID := fmt.Sprintf("user-%03d", u)
		store.PutUser(models.User{ID: userID, Email: userID + "@loadtest.invalid", Plan: plan})
		for s := 0; s < sitesPerUser; s++ {
			store.PutWebsite(models.Website{
				ID:        websiteID(u, s),
				UserID:    userID,
				URL:       fmt.Sprintf("https://%s.loadtest.invalid", websiteID(u, s)),
				Plan:      plan,
				Monitored: true,
			})
		}
	}

	comp, err := storage.NewZstdCompressor()
	if err != nil {
		return err
	}
	fm := storage.NewFileManager(comp, store, &testutil.MockLogger{})
	defer fm.Close()
	return fm.SaveToFile(path)
}

func authorized(req *http.Request) {
	req.Header.Set(providers.SecretHeader, *secret)
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func doTrigger(triggered *atomic.Int64) result {
	req, _ := http.NewRequest(http.MethodPost, *baseURL+"/cron/scans", nil)
	authorized(req)
	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{"POST /cron/scans", 0, lat, true}
	}
	defer resp.Body.Close()
	var body struct {
		Triggered int64 `json:"triggered"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	triggered.Add(body.Triggered)
	return result{"POST /cron/scans", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doSnapshot(rng *rand.Rand) result {
	body := map[string]interface{}{
		"websiteId": websiteID(rng.Intn(numUsers), rng.Intn(sitesPerUser)),
		"score":     40 + rng.Intn(61),
	}
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, *baseURL+"/snapshots", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	authorized(req)

	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{"POST /snapshots", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST /snapshots", resp.StatusCode, lat, resp.StatusCode != 201}
}

func doGetAlerts(rng *rand.Rand) result {
	url := fmt.Sprintf("%s/alerts?website=%s", *baseURL, websiteID(rng.Intn(numUsers), rng.Intn(sitesPerUser)))
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /alerts", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /alerts", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doGetPlans() result {
	start := time.Now()
	resp, err := httpClient.Get(*baseURL + "/plans")
	lat := time.Since(start)
	if err != nil {
		return result{"GET /plans", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /plans", resp.StatusCode, lat, resp.StatusCode != 200}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
