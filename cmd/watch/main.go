package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/core/db"
	"thirdwatch.dev/watch/internal/checker"
	"thirdwatch.dev/watch/internal/manifest"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/notify"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
)

// One-shot runner: ingest a manifest, check every watched dependency once,
// route notifications, print the results. Meant for CI jobs and local runs,
// so backing services are optional.

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWatch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	// Different snowflake node than server (1) and worker (2)
	if err := id.Init(3); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize id generator: %v\n", err)
		os.Exit(1)
	}

	m := metrics.Init()

	// Manifest path: positional argument wins over MANIFEST_FILE
	manifestPath := cfg.Rules.ManifestPath
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	if manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: watch <manifest.json> (or set MANIFEST_FILE)")
		os.Exit(1)
	}

	man, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
		os.Exit(1)
	}

	// Stores: in-memory unless DATABASE_URL is set. The config default DSN
	// points at localhost, so check the env var itself.
	var stores store.Stores
	if os.Getenv("DATABASE_URL") != "" {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		stores = store.NewPostgres(database)
		fmt.Fprintln(os.Stderr, "Store: postgres")
	} else {
		stores = store.NewMemory()
		fmt.Fprintln(os.Stderr, "Store: in-memory (results not persisted)")
	}

	// Validator cache: Redis keeps conditional-request state across runs
	var cache registry.ValidatorCache = registry.NewMemoryValidatorCache()
	if os.Getenv("REDIS_URL") != "" {
		redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse redis url: %v\n", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		cache = registry.NewRedisValidatorCache(redisClient)
		fmt.Fprintln(os.Stderr, "Validator cache: redis")
	} else {
		fmt.Fprintln(os.Stderr, "Validator cache: in-memory")
	}

	var channels []model.ChannelConfig
	if cfg.Rules.ChannelsPath != "" {
		channels, err = notify.LoadChannels(cfg.Rules.ChannelsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load channel config: %v\n", err)
			os.Exit(1)
		}
	} else {
		// No channel file: print findings to the terminal
		channels = []model.ChannelConfig{{ID: "console", Type: model.ChannelConsole}}
	}

	runner, err := checker.BuildRunner(cfg, stores, cache, channels, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build check pipeline: %v\n", err)
		os.Exit(1)
	}

	deps := man.Normalize()
	counts, err := stores.Dependencies().UpsertBatch(ctx, deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to ingest manifest: %v\n", err)
		os.Exit(1)
	}

	// Re-read so every record carries its store-assigned ID
	watched, err := stores.Dependencies().List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list dependencies: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Manifest: %s (%d watched, %d new)\n\n",
		man.Repository, len(watched), counts.Created)

	summary := runner.RunBatch(ctx, watched, cfg.Watch.CheckConcurrency, cfg.Watch.CheckTimeout)

	printResults(summary)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func printResults(s checker.Summary) {
	for _, res := range s.Results {
		if res.Check.Err != nil {
			fmt.Printf("fail            %s: %v\n", res.Check.DependencyKey, res.Check.Err)
			continue
		}
		ev := res.Check.Event
		if ev == nil {
			continue
		}
		line := fmt.Sprintf("%-15s %s %s -> %s", ev.ChangeType, ev.DependencyKey, ev.PreviousVersion, ev.NewVersion)
		if res.Assessment != nil {
			line += fmt.Sprintf(" [%s %.2f]", res.Assessment.Priority, res.Assessment.Score)
		}
		if res.Suppressed {
			line += " (suppressed)"
		}
		fmt.Println(line)
	}

	fmt.Printf("\nchecked=%d changed=%d skipped=%d failed=%d suppressed=%d notified=%d\n",
		s.Checked, s.Changed, s.Skipped, s.Failed, s.Suppressed, s.Notified)
}
