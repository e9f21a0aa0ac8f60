package recommender

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vadiminshakov/autotrader/internal/trace"
)

// tracedSource wraps a Source with a span and debug logging.
type tracedSource struct {
	name   string
	source Source
	logger *zap.Logger
}

var _ Source = (*tracedSource)(nil)

// Traced decorates a source with tracing.
func Traced(name string, source Source, logger *zap.Logger) Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tracedSource{name: name, source: source, logger: logger}
}

func (t *tracedSource) Recommend(ctx context.Context, req Request) (raw string, err error) {
	ctx, span := trace.StartSpan(ctx, "recommender.Recommend",
		attribute.String("provider", t.name),
		attribute.Int("holdings", len(req.Portfolio.Holdings)))
	defer func() { trace.End(span, err) }()

	t.logger.Debug("requesting recommendation", zap.String("provider", t.name))

	raw, err = t.source.Recommend(ctx, req)
	if err != nil {
		return "", err
	}

	span.SetAttributes(attribute.Int("response_bytes", len(raw)))
	t.logger.Debug("recommendation received", zap.String("provider", t.name), zap.Int("bytes", len(raw)))
	return raw, nil
}
