package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/i2y/mcp-odoo/internal/usecase"

// CallToolUseCase executes a single tool invocation: registry lookup,
// required-argument presence check, bounded handler call. Instrumentation
// happens here, at the call site, never by wrapping registry entries.
type CallToolUseCase struct {
	registry ToolRegistry
	timeout  time.Duration
	logger   *slog.Logger

	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewCallToolUseCase creates a new CallToolUseCase. timeout bounds every
// handler invocation; zero means no bound.
func NewCallToolUseCase(registry ToolRegistry, timeout time.Duration, logger *slog.Logger) *CallToolUseCase {
	meter := otel.Meter(instrumentationName)
	calls, err := meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of tools/call invocations."))
	if err != nil {
		otel.Handle(err)
	}
	duration, err := meter.Float64Histogram("mcp.tool.call.duration",
		metric.WithDescription("Tool handler latency."),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}
	return &CallToolUseCase{
		registry: registry,
		timeout:  timeout,
		logger:   logger.With("usecase", "CallTool"),
		tracer:   otel.Tracer(instrumentationName),
		calls:    calls,
		duration: duration,
	}
}

// Execute finds the tool, checks required arguments are present (types are
// not coerced; the backend performs its own validation), and runs the
// handler under the per-call deadline.
func (uc *CallToolUseCase) Execute(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error) {
	log := uc.logger.With(slog.String("tool", toolName))

	tool, err := uc.registry.Lookup(toolName)
	if err != nil {
		log.Warn("Tool not found.", slog.Any("error", err))
		return nil, fmt.Errorf("unknown tool '%s': %w", toolName, err)
	}

	for _, name := range tool.InputSchema.Required {
		if _, ok := args[name]; !ok {
			log.Warn("Missing required argument.", slog.String("argument", name))
			return nil, fmt.Errorf("tool '%s': missing required argument '%s'", toolName, name)
		}
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	ctx, span := uc.tracer.Start(ctx, "tools/call",
		trace.WithAttributes(attribute.String("mcp.tool.name", toolName)))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("mcp.tool.name", toolName))
	uc.calls.Add(ctx, 1, attrs)

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	elapsed := time.Since(start)
	uc.duration.Record(ctx, elapsed.Seconds(), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Error("Tool call timed out.", slog.Duration("elapsed", elapsed), slog.Duration("timeout", uc.timeout))
			return nil, fmt.Errorf("tool '%s' timed out after %s", toolName, uc.timeout)
		}
		log.Error("Tool call failed.", slog.Any("error", err), slog.Duration("elapsed", elapsed))
		return nil, fmt.Errorf("tool '%s': %w", toolName, err)
	}

	log.Info("Tool call succeeded.", slog.Duration("elapsed", elapsed))
	return result, nil
}
