package observability

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viant/mcprpc"

// Tracer returns the package-wide tracer, resolved against whatever
// TracerProvider is currently registered with otel.SetTracerProvider (a
// no-op provider until one is installed, e.g. via NewStdoutTracerProvider).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// NewStdoutTracerProvider builds a TracerProvider that writes spans as JSON
// to w for local/demo use, installs it as the global provider via
// otel.SetTracerProvider, and returns a shutdown func the caller should
// defer-call to flush pending spans on exit. Pass nil for w to use stdout.
func NewStdoutTracerProvider(w io.Writer) (func(context.Context) error, error) {
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// StartSpan starts a span named name under ctx with attrs attached, and
// returns the derived context plus an end function: callers defer a call
// to endSpan(err) on a named return error so a non-nil error is recorded on
// the span and reflected in its status before it ends.
//
//	ctx, endSpan := observability.StartSpan(ctx, "Session.Send", attribute.String("method", req.Method))
//	defer func() { endSpan(err) }()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
