// Package observability provides logging, metrics, and tracing
// functionality for the gateway.
//
// # Logging
//
// The Logger interface provides structured logging over zap. When the
// configured output is a file path, entries are written through a rotating
// lumberjack writer:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/apigateway/gateway.log",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// # Metrics
//
// Prometheus metrics for requests, upstream dispatch, authorization and
// rate limiting live on a private registry:
//
//	metrics := observability.NewMetrics("apigateway")
//	handler := metrics.Handler()
//
// # Tracing
//
// OpenTelemetry tracing with OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    Enabled:      true,
//	    ServiceName:  "apigateway",
//	    OTLPEndpoint: "localhost:4317",
//	    SamplingRate: 1.0,
//	})
package observability
