// cmd/match-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freight-match-engine/internal/common/config"
	"freight-match-engine/internal/common/database"
	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/common/observability"
	"freight-match-engine/internal/lookup"
	"freight-match-engine/internal/matching"
	"freight-match-engine/internal/models"
	"freight-match-engine/internal/notify"
	"freight-match-engine/internal/storage/postgres"

	bm "freight-match-engine/internal/workers/matching/batch-match"
	ma "freight-match-engine/internal/workers/matching/match-analytics"
	rw "freight-match-engine/internal/workers/matching/recalibrate-weights"
	sm "freight-match-engine/internal/workers/matching/smart-match"
	sr "freight-match-engine/internal/workers/matching/suggestion-response"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting match engine...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Storage layer ---
	offerRepo := postgres.NewOfferRepo(pg.GetDB())
	matchRepo := postgres.NewMatchRepo(pg.GetDB())
	weightRepo := postgres.NewWeightRepo(pg.GetDB())
	feedbackRepo := postgres.NewFeedbackRepo(pg.GetDB())

	// --- Bootstrap the weight vector ---
	bootstrap := models.BootstrapWeightVector(cfg.Matching.PremiumThreshold, cfg.Matching.GoodThreshold)
	if err := weightRepo.EnsureBootstrap(ctx, bootstrap); err != nil {
		zapLog.Fatal("weight vector bootstrap failed", zap.Error(err))
	}

	// --- Lookups ---
	pricing := lookup.NewESPriceLookup(esClient, redis, cfg.Pricing, log)
	emissions := lookup.NewStaticEmissionsLookup(cfg.Matching.CarbonFactors)
	reliability := lookup.NewCachedReliabilityLookup(feedbackRepo, redis, log)

	// --- Notifier ---
	notifier, err := notify.NewPremiumNotifierFromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	// --- Matching engine ---
	weightSource := matching.NewWeightSource(weightRepo)
	extractor := matching.NewExtractor(cfg.Matching, pricing, emissions, reliability, log)
	service := matching.NewService(cfg.Matching, offerRepo, matchRepo, weightSource, extractor, log)
	batcher := matching.NewBatchMatcher(cfg.Batch, offerRepo, service, notifier, log)
	recorder := matching.NewRecorder(feedbackRepo, log)
	recalibrator := matching.NewRecalibrator(cfg.Recalibration, feedbackRepo, weightRepo, weightSource,
		matching.NewRedisLease(redis), log)
	aggregator := matching.NewAggregator(matchRepo, weightRepo)
	engine := matching.NewEngine(service, batcher, recorder, recalibrator, aggregator, matchRepo)

	zapLog.Info("Matching engine assembled")

	// --- Register the 5 task workers ---
	if cfg.Workers[sm.TaskType].Enabled {
		handler := sm.NewHandler(
			&sm.Config{
				Timeout:      time.Duration(cfg.Workers[sm.TaskType].Timeout) * time.Millisecond,
				DefaultLimit: cfg.Matching.DefaultLimit,
			},
			engine, log,
		)
		startWorker(zeebeClient, sm.TaskType, cfg.Workers[sm.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[bm.TaskType].Enabled {
		handler := bm.NewHandler(
			&bm.Config{
				Timeout:         time.Duration(cfg.Workers[bm.TaskType].Timeout) * time.Millisecond,
				HoursBack:       cfg.Batch.HoursBack,
				LimitPerFreight: cfg.Batch.LimitPerFreight,
			},
			engine, log,
		)
		startWorker(zeebeClient, bm.TaskType, cfg.Workers[bm.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[sr.TaskType].Enabled {
		handler := sr.NewHandler(
			&sr.Config{
				Timeout: time.Duration(cfg.Workers[sr.TaskType].Timeout) * time.Millisecond,
			},
			engine, log,
		)
		startWorker(zeebeClient, sr.TaskType, cfg.Workers[sr.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rw.TaskType].Enabled {
		handler := rw.NewHandler(
			&rw.Config{
				Timeout: time.Duration(cfg.Workers[rw.TaskType].Timeout) * time.Millisecond,
			},
			engine, log,
		)
		startWorker(zeebeClient, rw.TaskType, cfg.Workers[rw.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ma.TaskType].Enabled {
		handler := ma.NewHandler(
			&ma.Config{
				Timeout: time.Duration(cfg.Workers[ma.TaskType].Timeout) * time.Millisecond,
			},
			engine, log,
		)
		startWorker(zeebeClient, ma.TaskType, cfg.Workers[ma.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Internal schedulers ---
	schedulerCtx, stopSchedulers := context.WithCancel(ctx)
	defer stopSchedulers()

	go runBatchScheduler(schedulerCtx, cfg.Batch, engine, zapLog)
	go runExpirySweep(schedulerCtx, cfg.Batch, engine, zapLog)
	go runRecalibrationScheduler(schedulerCtx, cfg.Recalibration, engine, zapLog)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stopSchedulers()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Match engine stopped gracefully")
}

// runBatchScheduler re-matches the recent active freight on a fixed interval.
func runBatchScheduler(ctx context.Context, cfg config.BatchConfig, engine *matching.Engine, log *zap.Logger) {
	if cfg.IntervalMinutes <= 0 {
		log.Info("batch scheduler disabled")
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := engine.BatchMatch(ctx, cfg.HoursBack, cfg.LimitPerFreight)
			if err != nil {
				log.Error("scheduled batch match failed", zap.Error(err))
				continue
			}
			log.Info("scheduled batch match finished",
				zap.Int("processed", summary.Processed),
				zap.Int("matchesWritten", summary.MatchesWritten),
				zap.Int("failedOffers", len(summary.Errors)),
				zap.Duration("duration", summary.Duration),
			)
		}
	}
}

// runExpirySweep expires suggestions older than the configured TTL.
func runExpirySweep(ctx context.Context, cfg config.BatchConfig, engine *matching.Engine, log *zap.Logger) {
	if cfg.SweepIntervalHours <= 0 || cfg.SuggestionTTLHours <= 0 {
		log.Info("expiry sweep disabled")
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.SweepIntervalHours) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-time.Duration(cfg.SuggestionTTLHours) * time.Hour)
			swept, err := engine.MarkExpired(ctx, cutoff)
			if err != nil {
				log.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				log.Info("expired stale suggestions", zap.Int64("count", swept))
			}
		}
	}
}

// runRecalibrationScheduler retunes the weight vector on a fixed interval.
// The redis lease inside the recalibrator keeps concurrent instances from
// double-publishing.
func runRecalibrationScheduler(ctx context.Context, cfg config.RecalibrationConfig, engine *matching.Engine, log *zap.Logger) {
	if cfg.IntervalHours <= 0 {
		log.Info("recalibration scheduler disabled")
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := engine.RecalibrateWeights(ctx)
			if err != nil {
				log.Warn("scheduled recalibration did not run", zap.Error(err))
				continue
			}
			if result.Published {
				log.Info("weight vector recalibrated",
					zap.Int("version", result.Vector.Version),
					zap.Int("samples", result.Samples),
				)
			} else {
				log.Info("recalibration skipped", zap.String("reason", result.Reason))
			}
		}
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
