// Package telemetry はOpenTelemetryのトレースエクスポートを設定する。
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options はトレースエクスポートの設定。
type Options struct {
	ServiceName string
	Endpoint    string // 空の場合はエクスポートしない
	Insecure    bool
}

// ShutdownFunc は保留中のスパンをフラッシュしてプロバイダを停止する。
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup はOTLP/gRPCエクスポーターを持つTracerProviderをグローバルに設定する。
// Endpointが空、またはエクスポーターの生成に失敗した場合は何もしないShutdownFuncを返す。
// W3C Trace Contextのプロパゲーターは常に設定する。
func Setup(ctx context.Context, opts Options, logger *slog.Logger) ShutdownFunc {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if opts.Endpoint == "" {
		return noop
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		logger.Error("OTLPエクスポーターの生成に失敗しました",
			slog.String("endpoint", opts.Endpoint),
			slog.String("error", err.Error()),
		)
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		logger.Warn("OTelリソースの生成に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("トレースのエクスポートを開始しました",
		slog.String("service", opts.ServiceName),
		slog.String("endpoint", opts.Endpoint),
	)
	return provider.Shutdown
}
