package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/batch"
	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/config"
	"horse.fit/polyglot/internal/dataimport"
	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/logging"
	"horse.fit/polyglot/internal/translation"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

type runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func (r *runtime) Close() {
	r.cancel()
	_ = r.pool.Close()
}

// bootstrap loads the environment and config, builds the logger and connects
// to the database. A non-positive timeout leaves the context without deadline.
func bootstrap(timeout time.Duration, envLoader *cli.EnvLoader) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		logger.Error().Err(err).Msg("database connection failed")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &runtime{ctx: ctx, cancel: cancel, cfg: cfg, logger: logger, pool: pool}, nil
}

type services struct {
	jobs    *batch.Coordinator
	imports *dataimport.Service
}

func newServices(rt *runtime) services {
	providers := translation.NewRegistryFromConfig(*rt.cfg)
	registry := batch.NewDefaultRegistry(rt.pool, providers, batch.ProcessorOptions{
		SubBatchSize:        rt.cfg.BatchSubBatchSize,
		MTRequestsPerSecond: rt.cfg.MTRequestsPerSecond,
		Logger:              logging.Component(rt.logger, "batch"),
	})
	jobs := batch.NewCoordinator(rt.pool, registry, batch.Options{
		ChunkSize:   rt.cfg.BatchChunkSize,
		Concurrency: rt.cfg.BatchConcurrency,
		Logger:      logging.Component(rt.logger, "batch"),
	})
	imports := dataimport.NewService(dataimport.NewPoolStore(rt.pool), dataimport.Options{
		MaxFileBytes: rt.cfg.ImportMaxFileBytes,
		Logger:       logging.Component(rt.logger, "import"),
	})
	return services{jobs: jobs, imports: imports}
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatUTCTimestamp(*value)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
