package testday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/pkg/logger"
)

// Run executes the complete testing-day simulation and returns its stats.
func Run(ctx context.Context, config *Config, log logger.Logger) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.BaseURL, config.Timeout)
	gen := newGenerator(config.Seed)

	log.Info(ctx, "starting testing day",
		logger.String("baseURL", config.BaseURL),
		logger.Int("athletes", config.NumAthletes),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	// Step 1: Check service health
	if err := client.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Sign up athletes concurrently
	ids := signUpAthletes(ctx, client, config, gen, stats, log)
	if len(ids) == 0 {
		return stats, fmt.Errorf("no athlete could sign up")
	}

	// Step 3: Create the session
	var created sessionResponse
	req := sessionRequest{SessionName: "Testing Day " + stats.StartTime.Format("2006-01-02 15:04"), AthleteIDs: ids}
	if err := client.do(ctx, http.MethodPost, "/sessions", req, &created, http.StatusCreated); err != nil {
		return stats, fmt.Errorf("session creation failed: %w", err)
	}
	log.Info(ctx, "session created", logger.String("session_id", created.SessionID))

	// Step 4: Record results concurrently
	patches := make(map[string]schema.Patch, len(ids))
	for _, id := range ids {
		patches[id] = gen.results()
	}
	recorded := recordResults(ctx, client, config, created.SessionID, ids, patches, stats, log)

	// Step 5: Verify the dashboard
	var dashboard aggregation.Dashboard
	if err := client.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(created.SessionID)+"/dashboard", nil, &dashboard, http.StatusOK); err != nil {
		return stats, fmt.Errorf("dashboard retrieval failed: %w", err)
	}
	mismatches := verifyDashboard(ids, recorded, dashboard, config.RankingSize)
	stats.TestsVerified = len(dashboard.Tests)
	stats.Mismatches = len(mismatches)
	for _, m := range mismatches {
		log.Warn(ctx, "dashboard mismatch", logger.String("detail", m))
	}

	if config.OutputFile != "" {
		if err := saveResults(config.OutputFile, created.SessionID, recorded); err != nil {
			log.Warn(ctx, "failed to save results", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats, log)

	if len(mismatches) > 0 {
		return stats, fmt.Errorf("%d dashboard mismatches", len(mismatches))
	}
	log.Info(ctx, "testing day completed successfully")
	return stats, nil
}

// signUpAthletes registers the simulated athletes with a worker pool and
// returns their ids in sign-up order.
func signUpAthletes(ctx context.Context, client *HTTPClient, config *Config, gen *generator, stats *Stats, log logger.Logger) []string {
	ids := make([]string, config.NumAthletes)
	var failed int64

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				var a athleteResponse
				if err := client.do(ctx, http.MethodPost, "/athletes", gen.athlete(i), &a, http.StatusCreated); err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "sign-up failed", logger.Int("athlete", i), logger.Error(err))
					}
					continue
				}
				ids[i] = a.ID
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < config.NumAthletes; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	stats.AthletesSignedUp = len(out)
	stats.SignUpsFailed = int(atomic.LoadInt64(&failed))
	log.Info(ctx, "athletes signed up",
		logger.Int("successful", stats.AthletesSignedUp),
		logger.Int("failed", stats.SignUpsFailed),
	)
	return out
}

// recordResults patches every athlete's record with a worker pool and
// returns the values the server accepted.
func recordResults(ctx context.Context, client *HTTPClient, config *Config, sessionID string, ids []string, patches map[string]schema.Patch, stats *Stats, log logger.Logger) map[string]map[string]*float64 {
	var (
		mu       sync.Mutex
		recorded = make(map[string]map[string]*float64, len(ids))
		sent     int64
		failed   int64
		fields   int64
	)

	jobs := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				atomic.AddInt64(&sent, 1)
				var rec map[string]*float64
				path := "/sessions/" + url.PathEscape(sessionID) + "/athletes/" + url.PathEscape(id)
				if err := client.do(ctx, http.MethodPatch, path, patches[id], &rec, http.StatusOK); err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "result entry failed", logger.String("athlete_id", id), logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&fields, int64(len(patches[id])))
				mu.Lock()
				recorded[id] = rec
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()
	wg.Wait()

	stats.PatchesSent = int(atomic.LoadInt64(&sent))
	stats.PatchesFailed = int(atomic.LoadInt64(&failed))
	stats.FieldsRecorded = int(atomic.LoadInt64(&fields))
	log.Info(ctx, "results recorded",
		logger.Int("patches", stats.PatchesSent),
		logger.Int("failed", stats.PatchesFailed),
		logger.Int("fields", stats.FieldsRecorded),
	)
	return recorded
}

// saveResults writes the recorded values to path as JSON.
func saveResults(path, sessionID string, recorded map[string]map[string]*float64) error {
	data, err := json.MarshalIndent(map[string]any{
		"sessionId": sessionID,
		"tests":     recorded,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats, log logger.Logger) {
	var successRate float64
	if stats.PatchesSent > 0 {
		successRate = float64(stats.PatchesSent-stats.PatchesFailed) / float64(stats.PatchesSent) * PercentageMultiplier
	}
	log.Info(ctx, "final statistics",
		logger.Int("athletesSignedUp", stats.AthletesSignedUp),
		logger.Int("signUpsFailed", stats.SignUpsFailed),
		logger.Int("patchesSent", stats.PatchesSent),
		logger.Int("patchesFailed", stats.PatchesFailed),
		logger.Int("fieldsRecorded", stats.FieldsRecorded),
		logger.Int("testsVerified", stats.TestsVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
	)
}
