// Package observability configures the process-wide logging stack: a slog
// handler for the console and, when requested, an OpenTelemetry log pipeline
// exporting via OTLP.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Log formats accepted by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTLP = "otlp"
)

// instrumentationName identifies this process in exported log records.
const instrumentationName = "authrelay"

// Instrument installs the global slog logger. Formats "text" and "json" write
// to stderr. Format "otlp" bridges slog into an OpenTelemetry log pipeline:
// records at or above level are exported via OTLP/HTTP when
// OTEL_EXPORTER_OTLP_ENDPOINT (or the logs-specific variant) is set, falling
// back to a pretty-printed stdout exporter for local development.
func Instrument(level slog.Level, format string) error {
	switch format {
	case FormatText:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	case FormatOTLP:
		provider, err := newLoggerProvider(level)
		if err != nil {
			return err
		}
		slog.SetDefault(otelslog.NewLogger(instrumentationName, otelslog.WithLoggerProvider(provider)))
		return nil
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}
}

// newLoggerProvider builds the OTLP export pipeline with a minimum-severity
// filter matching the configured slog level.
func newLoggerProvider(level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newExporter()
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	processor := minsev.NewLogProcessor(
		sdklog.NewBatchProcessor(exporter),
		convertLevel(level),
	)

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// newExporter picks OTLP/HTTP when an endpoint is configured in the
// environment, stdout otherwise.
func newExporter() (sdklog.Exporter, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") != "" {
		return otlploghttp.New(context.Background())
	}
	return stdoutlog.New(stdoutlog.WithPrettyPrint())
}

// convertLevel maps a slog level to the minsev severity threshold.
func convertLevel(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
