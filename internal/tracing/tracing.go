package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Attribute keys set on store spans.
const (
	AttrStore      = attribute.Key("reducto.store")
	AttrActionKind = attribute.Key("reducto.action.kind")
	AttrListeners  = attribute.Key("reducto.listeners")
	AttrOutcome    = attribute.Key("reducto.outcome")
)

// DefaultRedactedKeywords are the lowercase keywords whose values are masked
// before an error message is attached to a span or logged by a decorator.
// Postgres DSNs and NATS URLs routinely carry credentials.
var DefaultRedactedKeywords = map[string]struct{}{
	"password": {},
	"secret":   {},
	"token":    {},
	"apikey":   {},
}

// RedactSecretsInString masks what follows any keyword (case-insensitive)
// on each line. A line is redacted from the first non-separator character
// after the keyword to its end.
func RedactSecretsInString(input string, keywords map[string]struct{}) string {
	if len(keywords) == 0 || input == "" {
		return input
	}

	redacted := false
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		for keyword := range keywords {
			idx := strings.Index(lower, keyword)
			if idx == -1 {
				continue
			}
			start := idx + len(keyword)
			for start < len(line) && strings.ContainsRune(":= '\"", rune(line[start])) {
				start++
			}
			if start < len(line) {
				lines[i] = line[:start] + "[REDACTED]"
				redacted = true
				break
			}
		}
	}
	if !redacted {
		return input
	}
	return strings.Join(lines, "\n")
}

// RedactError returns an error carrying the redacted message of err, or nil.
func RedactError(err error, keywords map[string]struct{}) error {
	if err == nil {
		return nil
	}
	msg := RedactSecretsInString(err.Error(), keywords)
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}

// RecordErrorWithContext records err on span with its message redacted and
// marks the span as failed. Nil errors and non-recording spans are ignored.
func RecordErrorWithContext(span oteltrace.Span, err error, keywords map[string]struct{}) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	msg := RedactSecretsInString(err.Error(), keywords)
	span.RecordError(errors.New(msg), oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, msg)
}
