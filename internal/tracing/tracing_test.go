package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewProvider_Disabled verifies the no-op path.
func TestNewProvider_Disabled(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

// TestNewProvider_Stdout verifies spans reach the writer on shutdown.
func TestNewProvider_Stdout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := NewProvider(Config{Enabled: true, Exporter: "stdout", Writer: &buf})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "di.Build")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "di.Build"`)
	assert.Contains(t, buf.String(), ServiceName)
}

// TestNewProvider_Exporters verifies the accepted exporter names.
func TestNewProvider_Exporters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		exporter string
		ok       bool
	}{
		{"none", true},
		{"", true},
		{"stdout", true},
		{"otlp", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.exporter, func(t *testing.T) {
			t.Parallel()
			p, err := NewProvider(Config{Enabled: true, Exporter: tt.exporter, Writer: &bytes.Buffer{}})
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, p.Shutdown(context.Background()))
		})
	}
}
