package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/wintality/athlete-testing/internal/testday"
	"github.com/wintality/athlete-testing/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumAthletes = 40
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRankingSize = 5
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numAthletes = flag.Int("athletes", defaultNumAthletes, "Number of athletes to sign up")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		ranking     = flag.Int("ranking", defaultRankingSize, "Ranking size the server is configured with")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for generated results")
		outputFile  = flag.String("output", "", "Optional JSON file for the recorded results")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &testday.Config{
		BaseURL:     *baseURL,
		NumAthletes: *numAthletes,
		Workers:     max(*workers, 1),
		Timeout:     *timeout,
		RankingSize: *ranking,
		Seed:        *seed,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if _, err := testday.Run(ctx, config, logger.Named("test-day")); err != nil {
		os.Stderr.WriteString("testing day failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
