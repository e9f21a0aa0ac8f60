package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(Config{Enabled: true, ServiceName: "autotrader-test", ServiceVersion: "test", Writer: &buf})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "cycle", attribute.Int("seq", 1))
	traceID, _, ok := IDs(ctx)
	assert.True(t, ok)
	assert.NotEmpty(t, traceID)
	End(span, errors.New("boom"))

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "cycle"`)
	assert.Contains(t, buf.String(), "boom")
}
