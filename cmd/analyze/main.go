package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/engine"
	"github.com/abbasaisolutions/sygnify-sub002/internal/metrics"
	"github.com/abbasaisolutions/sygnify-sub002/internal/metrics/datadog"
	"github.com/abbasaisolutions/sygnify-sub002/internal/source"

	// register all backends with the checkpoint factory.
	_ "github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint/all"
)

// main is the entry point for the analyze binary. It loads the run config,
// optionally initializes a metrics backend, and executes the analysis run,
// writing the report as JSON to stdout.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	p, err := config.Load(f)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// The Datadog backend buffers metrics and submits periodically,
		// plus one final time at shutdown (Close()). Long runs get an
		// actual time series rather than a single spike at the end.
		jobName := p.Job
		if jobName == "" {
			jobName = "analyze"
		}

		// Optional extra tags provided via environment. This complements
		// the backend-enforced env:<...> tag.
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)

			// Close() stops the periodic flush loop and then performs the
			// final Flush(). This is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	var opts []engine.Option
	if *verbose {
		opts = append(opts, engine.WithLogger(log.Default()))
		log.Printf("run: source=%s strategy=%s chunk_size=%d workers=%d",
			p.Source.Kind, p.Strategy, p.ChunkSize, p.Workers)
	}

	if p.Strategy == config.StrategyIncremental || (p.Growing && p.KeyColumn != "") {
		store, err := checkpoint.New(ctx, checkpoint.Config{Kind: p.Checkpoint.Kind, DSN: p.Checkpoint.DSN})
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()
		opts = append(opts, engine.WithCheckpoints(store))
	}

	rdr, err := source.Open(p.Source)
	if err != nil {
		fatalf("%v", err)
	}

	res, err := engine.New(p, opts...).Run(ctx, rdr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	if res.CheckpointErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", res.CheckpointErr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode report: %v", err)
	}

	if *verbose {
		log.Printf("completed strategy=%s records=%d chunks=%d in %s",
			res.Strategy, res.RecordCount, res.ChunkCount, time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
