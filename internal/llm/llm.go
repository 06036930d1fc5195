// Package llm provides the text generation backend.
package llm

import (
	"context"
	"errors"
	"iter"

	"github.com/ashureev/mpt-session/internal/domain"
)

// ErrNotConfigured is yielded by Disabled.
var ErrNotConfigured = errors.New("generation backend not configured")

// Generator streams a reply for a system instruction and a conversation.
//
// The returned sequence is finite, single-use and ordered. Each element is
// either a non-empty text fragment or a terminal error. Stopping iteration
// early releases the underlying request.
type Generator interface {
	Stream(ctx context.Context, system string, history []domain.Message) iter.Seq2[string, error]
}

// Disabled is a Generator that always fails before producing output. It is
// used when no API key is configured.
type Disabled struct{}

// Stream yields ErrNotConfigured.
func (Disabled) Stream(context.Context, string, []domain.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", ErrNotConfigured)
	}
}

var _ Generator = Disabled{}
