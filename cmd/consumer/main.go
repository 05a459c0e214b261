package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/visit-trip-linker/internal/app"
	"github.com/example/visit-trip-linker/internal/config"
	"github.com/example/visit-trip-linker/internal/ingest"
	"github.com/example/visit-trip-linker/internal/logging"
	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/service"
)

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	if err := run(metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "consumer:", err)
		os.Exit(1)
	}
}

func run(metricsAddr string) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if len(cfg.KafkaBrokers) == 0 {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// metrics and health
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := a.Ready(r.Context()); err != nil {
				http.Error(w, err.Error(), 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	consumer := ingest.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaVisitsTopic, cfg.KafkaTripsTopic, logging.Component(logger, "consumer"))
	defer consumer.Close()

	f := &flusher{
		buffer:   consumer.Buffer,
		linker:   a.Linker,
		offsets:  consumer,
		attempts: 3,
		delay:    500 * time.Millisecond,
		logger:   logging.Component(logger, "flusher"),
	}

	logger.Info("consumer listening",
		"visits_topic", cfg.KafkaVisitsTopic,
		"trips_topic", cfg.KafkaTripsTopic,
		"brokers", cfg.KafkaBrokers,
		"group", cfg.KafkaGroup,
		"flush_interval", cfg.ConsumerFlushEvery.String(),
	)

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	ticker := time.NewTicker(cfg.ConsumerFlushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.flush(ctx)
		case err := <-done:
			// one last run over whatever is still buffered
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			f.flush(flushCtx)
			cancel()
			logger.Info("shutting down consumer")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}

// BatchLinker is the part of service.Linker the flusher needs.
type BatchLinker interface {
	Link(ctx context.Context, source string, b models.Batch) (service.Result, error)
}

// OffsetCommitter acknowledges consumed messages once their events are linked.
type OffsetCommitter interface {
	Commit(ctx context.Context, msgs []kafka.Message) error
}

type flusher struct {
	buffer   *ingest.Buffer
	linker   BatchLinker
	offsets  OffsetCommitter
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// flush links everything buffered so far and then commits the offsets it
// covered. A batch that still fails after all retries is requeued for the
// next tick with its offsets left uncommitted, so Kafka redelivers it after
// a restart.
func (f *flusher) flush(ctx context.Context) {
	p := f.buffer.Drain()
	if p.Empty() {
		return
	}
	b := p.Batch
	if len(b.Visits)+len(b.TripLegs) > 0 {
		res, err := linkWithRetry(ctx, f.linker, b, f.attempts, f.delay)
		if err != nil {
			f.buffer.Requeue(p)
			f.logger.Error("link failed, batch requeued", "visits", len(b.Visits), "trip_legs", len(b.TripLegs), "error", err)
			return
		}
		f.logger.Info("batch linked", "run_id", res.Run.ID, "records", res.Summary.Records, "matched", res.Summary.Matched)
	}
	if len(p.Messages) == 0 {
		return
	}
	// a failed commit only means those events are linked again after a restart
	if err := f.offsets.Commit(ctx, p.Messages); err != nil {
		f.logger.Error("offset commit failed", "messages", len(p.Messages), "error", err)
	}
}

// linkWithRetry runs the linker with retry/backoff. Cancellation is not retried.
func linkWithRetry(ctx context.Context, l BatchLinker, b models.Batch, attempts int, delay time.Duration) (service.Result, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var res service.Result
		if res, err = l.Link(ctx, "kafka", b); err == nil {
			return res, nil
		}
		if ctx.Err() != nil || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return service.Result{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return service.Result{}, err
}
