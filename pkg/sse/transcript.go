package sse

import (
	"io"
	"iter"
	"strings"

	"go.uber.org/zap"
)

// Transcript observes one streamed response. Message text is written to
// out as it arrives; undecodable data lines are logged and skipped.
// A Transcript is not safe for concurrent use.
type Transcript struct {
	out    io.Writer
	logger *zap.Logger

	chunks      int
	bytes       int
	parseErrors int
	text        strings.Builder
}

// NewTranscript creates a transcript writing message text to out.
// A nil out discards the text but still counts it.
func NewTranscript(out io.Writer, logger *zap.Logger) *Transcript {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcript{
		out:    out,
		logger: logger,
	}
}

// Tap yields every chunk of src unchanged and in order, observing each
// one before it is handed on
func (t *Transcript) Tap(src iter.Seq2[[]byte, error]) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for chunk, err := range src {
			if err == nil {
				t.Observe(chunk)
			}
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// Observe inspects a single chunk
func (t *Transcript) Observe(chunk []byte) {
	t.chunks++
	t.bytes += len(chunk)

	for _, line := range strings.Split(string(chunk), "\n") {
		payload, ok := DataPayload(line)
		if !ok {
			continue
		}

		env, err := ParseEnvelope(payload)
		if err != nil {
			t.parseErrors++
			t.logger.Warn("[PARSE ERROR]",
				zap.Error(err),
				zap.String("line", payload))
			continue
		}
		if env == nil {
			continue
		}

		if text := env.MessageText(); text != "" {
			t.text.WriteString(text)
			_, _ = io.WriteString(t.out, text)
		}
	}
}

// Close ends the transcript line and logs a summary
func (t *Transcript) Close() {
	_, _ = io.WriteString(t.out, "\n")

	t.logger.Info("stream relayed",
		zap.Int("chunks", t.chunks),
		zap.Int("bytes", t.bytes),
		zap.Int("parse_errors", t.parseErrors),
		zap.Int("message_chars", t.text.Len()))
}

// Chunks returns the number of chunks observed
func (t *Transcript) Chunks() int { return t.chunks }

// ParseErrors returns the number of undecodable data lines
func (t *Transcript) ParseErrors() int { return t.parseErrors }

// Text returns the message text seen so far
func (t *Transcript) Text() string { return t.text.String() }
