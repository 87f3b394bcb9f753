package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/i2y/mcp-odoo/configs"
	"github.com/i2y/mcp-odoo/internal/adapter/inbound/mcphttp"
	"github.com/i2y/mcp-odoo/internal/adapter/inbound/mcpstdio"
	"github.com/i2y/mcp-odoo/internal/adapter/outbound/memreg"
	"github.com/i2y/mcp-odoo/internal/adapter/outbound/odoo"
	"github.com/i2y/mcp-odoo/internal/session"
	"github.com/i2y/mcp-odoo/internal/tools"
	"github.com/i2y/mcp-odoo/internal/usecase"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "mcp-odoo"
	serviceVersion = "1.0.0"
)

func main() {
	var transport string
	var configPath string
	flag.StringVar(&transport, "transport", "sse", "Transport mode: sse or stdio")
	flag.StringVar(&configPath, "config", "", "Optional YAML config file (also MCPODOO_CONFIG_FILE)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := configs.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.ParsedLogLevel()
	var logger *slog.Logger
	if transport == "stdio" {
		// In STDIO mode the protocol owns stdout/stderr, so log to a file.
		logFile, err := os.OpenFile("/tmp/mcp-odoo.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
		} else {
			logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
		}
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()), slog.String("transport", transport))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration.", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Odoo gateway ===
	httpClient := &http.Client{Timeout: cfg.OdooTimeout}
	gateway := odoo.New(odoo.Config{
		URL:      cfg.OdooURL,
		Database: cfg.OdooDB,
		Username: cfg.OdooUsername,
		Password: cfg.OdooPassword,
		APIKey:   cfg.OdooAPIKey,
	}, httpClient, logger)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.OdooTimeout)
	err = gateway.Connect(connectCtx)
	cancel()
	if err != nil {
		// Tool calls reconnect on demand, so a cold Odoo does not keep the
		// server from starting.
		logger.Warn("Could not connect to Odoo at startup.",
			slog.String("url", cfg.OdooURL), slog.Any("error", err))
	} else {
		logger.Info("Connected to Odoo.",
			slog.String("url", cfg.OdooURL), slog.String("db", cfg.OdooDB))
	}

	// === Tool registry ===
	builder := memreg.NewBuilder(logger)
	if err := tools.RegisterAll(builder, gateway, logger); err != nil {
		logger.Error("Failed to register tools.", slog.Any("error", err))
		os.Exit(1)
	}
	registry := builder.Build()

	// === Use cases ===
	listTools := usecase.NewListToolsUseCase(registry, logger)
	callTool := usecase.NewCallToolUseCase(registry, cfg.ToolTimeout, logger)
	dispatcher := usecase.NewDispatcher(callTool, listTools, serviceName, serviceVersion, logger)

	switch transport {
	case "stdio":
		logger.Info("Starting in STDIO mode.")
		srv, err := mcpstdio.New(registry, callTool, serviceName, serviceVersion, logger)
		if err != nil {
			logger.Error("Failed to build STDIO server.", slog.Any("error", err))
			os.Exit(1)
		}
		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
			logger.Error("STDIO server error.", slog.Any("error", err))
			os.Exit(1)
		}

	case "sse":
		logger.Info("Starting in SSE mode.")
		sessions := session.NewManager(cfg.SessionTTL, logger)
		go sessions.Run(ctx)

		handlers := mcphttp.NewHandlers(dispatcher, sessions, registry, serviceName, cfg.HeartbeatInterval, logger)
		server := mcphttp.NewServer(cfg.ListenAddr, handlers)

		go func() {
			logger.Info("HTTP server starting.",
				slog.String("address", cfg.ListenAddr), slog.Int("tools", registry.Len()))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed.", slog.Any("error", err))
				stop()
			}
		}()

		<-ctx.Done()

		logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed.", slog.Any("error", err))
		}
		logger.Info("Servers shut down gracefully.")

	default:
		logger.Error("Invalid transport mode.", slog.String("transport", transport))
		os.Exit(1)
	}
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP
// trace exporter. It returns a shutdown function to be called on exit.
// Tracing stays disabled (no-op globals) when no endpoint is configured.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry TracerProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
