package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRedactSecretsInString(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no secret", "dial tcp: refused", "dial tcp: refused"},
		{"key value", "password=hunter2 rest", "password=[REDACTED]"},
		{"case insensitive", "Token: abc", "Token: [REDACTED]"},
		{"multi line", "ok\nsecret='x'", "ok\nsecret='[REDACTED]"},
		{"keyword at end", "no password", "no password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactSecretsInString(tt.in, DefaultRedactedKeywords))
		})
	}
	assert.Equal(t, "password=x", RedactSecretsInString("password=x", nil))
}

func TestRedactError(t *testing.T) {
	assert.Nil(t, RedactError(nil, DefaultRedactedKeywords))
	plain := errors.New("plain")
	assert.Same(t, plain, RedactError(plain, DefaultRedactedKeywords))
	assert.EqualError(t, RedactError(errors.New("token=abc"), DefaultRedactedKeywords), "token=[REDACTED]")
}

func TestRecordErrorWithContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewSDKProvider(exporter)
	_, span := tp.GetTracer("test").Start(context.Background(), "op")
	RecordErrorWithContext(span, errors.New("apikey=abc"), DefaultRedactedKeywords)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "apikey=[REDACTED]", spans[0].Status.Description)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNoOpProvider(t *testing.T) {
	tp, err := NewNoOpProvider()
	require.NoError(t, err)
	assert.True(t, tp.IsEffectivelyNoOp())
	_, span := tp.GetTracer("x").Start(context.Background(), "op")
	assert.False(t, span.IsRecording())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, parseHeaders(" a=1 , b = 2,broken"))
	assert.Empty(t, parseHeaders(""))
	assert.Equal(t, "1.5s", parseTimeout("1500", 0).String())
	assert.Equal(t, "2s", parseTimeout("2s", 0).String())
	assert.Equal(t, "10s", parseTimeout("-5", 10e9).String())
	assert.True(t, isInsecure("", "TRUE"))
	assert.False(t, isInsecure("false"))
}
