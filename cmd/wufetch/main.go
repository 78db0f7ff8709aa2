// Command wufetch performs a single bounded fetch against the Weather
// Underground PWS API and prints the decoded records as a JSON array.
//
// The API key, host and port come from WU_API_KEY, WU_HOST and WU_PORT; a
// .env file in the working directory is honored.
//
// Usage:
//
//	go run ./cmd/wufetch -station KMAHANOV10 -max 24
//
// Exit status is 0 when the fetch completed, 2 when it stopped early after
// reaching the array, and 1 when it failed before any record could be read.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/pws-feed-service/internal/domain"
	"github.com/couchcryptid/pws-feed-service/internal/observability"
	"github.com/couchcryptid/pws-feed-service/internal/wustream"
)

const (
	exitComplete = 0
	exitFailure  = 1
	exitPartial  = 2
)

func main() {
	_ = godotenv.Load()

	station := flag.String("station", os.Getenv("WU_STATION_ID"), "PWS station ID")
	endpoint := flag.String("endpoint", sharedcfg.EnvOrDefault("WU_ENDPOINT", "v2/pws/observations/all/1day"), "API path")
	marker := flag.String("marker", sharedcfg.EnvOrDefault("WU_ARRAY_MARKER", `"observations":[`), "bytes that open the record array")
	maxData := flag.Int("max", 24, "maximum records to decode")
	timeout := flag.Duration("timeout", 15*time.Second, "I/O timeout for the exchange")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	apiKey := os.Getenv("WU_API_KEY")
	if *station == "" || apiKey == "" {
		fmt.Fprintln(os.Stderr, "wufetch: -station (or WU_STATION_ID) and WU_API_KEY are required")
		flag.Usage()
		os.Exit(exitFailure)
	}

	port, err := strconv.Atoi(sharedcfg.EnvOrDefault("WU_PORT", "443"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "wufetch: invalid WU_PORT: %v\n", err)
		os.Exit(exitFailure)
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := observability.NewConsoleLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := wustream.Options{
		Host:        sharedcfg.EnvOrDefault("WU_HOST", "api.weather.com"),
		Port:        port,
		DialTimeout: 10 * time.Second,
		IOTimeout:   *timeout,
	}
	q := wustream.Query{
		Endpoint:    *endpoint,
		StationID:   *station,
		APIKey:      apiKey,
		ArrayMarker: *marker,
		MaxData:     *maxData,
	}

	code := run(ctx, wustream.NewClient(opts, observability.NewMetrics(), logger), q, os.Stdout, logger)
	stop()
	os.Exit(code)
}

// run fetches once and writes the decoded records to stdout. Records decoded
// before an early stop are still printed.
func run(ctx context.Context, client *wustream.Client, q wustream.Query, stdout io.Writer, logger *slog.Logger) int {
	out := make([]domain.Record, max(q.MaxData, 0))

	res := client.Fetch(ctx, q, out)

	if res.TotalFailure() {
		logger.Error("fetch failed", "stage", res.Stage, "error", res.Err)
		return exitFailure
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out[:res.Count]); err != nil {
		logger.Error("write records", "error", err)
		return exitFailure
	}

	if res.Partial() {
		logger.Warn("fetch ended early", "records", res.Count, "outcome", res.Outcome(), "error", res.Err)
		return exitPartial
	}
	logger.Info("records written", "records", res.Count, "stop", res.Stop)
	return exitComplete
}
