package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/visit-trip-linker/internal/app"
	"github.com/example/visit-trip-linker/internal/config"
	"github.com/example/visit-trip-linker/internal/ingest"
	"github.com/example/visit-trip-linker/internal/logging"
	"github.com/example/visit-trip-linker/internal/models"
)

type options struct {
	source string
	input  string
	output string
	from   string
	to     string
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", "workbook", "input source: workbook or db")
	flag.StringVar(&opts.input, "input", "", "input workbook (default: per-OS file_paths entry)")
	flag.StringVar(&opts.output, "output", "", "output workbook (default: OUTPUT_PATH)")
	flag.StringVar(&opts.from, "from", "", "first day to load from the source db (YYYY-MM-DD)")
	flag.StringVar(&opts.to, "to", "", "last day to load from the source db (YYYY-MM-DD, inclusive)")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "linker:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if opts.input != "" {
		cfg.InputPaths = config.FilePaths{Windows: opts.input, Mac: opts.input, Linux: opts.input}
	}
	if opts.output != "" {
		cfg.OutputPath = opts.output
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := load(ctx, a, cfg, opts, logger)
	if err != nil {
		return err
	}

	res, err := a.Linker.Link(ctx, opts.source, b)
	if err != nil {
		return err
	}
	if err := ingest.WriteWorkbook(cfg.OutputPath, res.Records); err != nil {
		return err
	}
	logger.Info("matches written",
		"path", cfg.OutputPath,
		"run_id", res.Run.ID,
		"records", res.Summary.Records,
		"matched", res.Summary.Matched,
		"unmatched", res.Summary.Unmatched,
		"no_trips_days", res.Summary.NoTripsThisDay,
	)
	return nil
}

func load(ctx context.Context, a *app.App, cfg config.ServerConfig, opts options, logger *slog.Logger) (models.Batch, error) {
	switch opts.source {
	case "workbook":
		path := cfg.InputPath()
		if path == "" {
			return models.Batch{}, errors.New("no input workbook configured for this OS")
		}
		b, rej, err := ingest.ReadWorkbook(path)
		if err != nil {
			return models.Batch{}, err
		}
		if rej.Total() > 0 {
			logger.Warn("skipped incomplete workbook rows", "visits", rej.Visits, "trip_legs", rej.TripLegs)
		}
		logger.Info("workbook loaded", "path", path, "visits", len(b.Visits), "trip_legs", len(b.TripLegs))
		return b, nil
	case "db":
		if a.Source == nil {
			return models.Batch{}, errors.New("SOURCE_DSN is required for -source=db")
		}
		from, to, err := dayRange(opts.from, opts.to)
		if err != nil {
			return models.Batch{}, err
		}
		return a.Source.Load(ctx, from, to)
	default:
		return models.Batch{}, fmt.Errorf("unknown source %q", opts.source)
	}
}

// dayRange turns inclusive YYYY-MM-DD bounds into a half-open UTC range.
func dayRange(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, errors.New("-from and -to are required")
	}
	f, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("-from: %w", err)
	}
	t, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("-to: %w", err)
	}
	if t.Before(f) {
		return time.Time{}, time.Time{}, errors.New("-to is before -from")
	}
	return f, t.AddDate(0, 0, 1), nil
}
