// Package extraction defines the context-extraction collaborator used
// to answer questions about a dataset from its surrounding material
// (landing pages, readmes, supplementary text).
package extraction

import (
	"context"
	"errors"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/platform/env"
)

// ErrNoAnswer signals that the collaborator cannot answer the query.
// Callers fall through to the next inference path.
var ErrNoAnswer = errors.New("no answer available")

// Answer is an extracted value with its supporting references.
type Answer struct {
	Text       string
	References []domain.Reference
}

// ContextExtractor answers dataset questions from external context.
type ContextExtractor interface {
	Extract(ctx context.Context, query string) (Answer, error)
}

// KeySource provides the current credential for the external
// collaborator. Key management itself lives outside this service.
type KeySource interface {
	CurrentKey(ctx context.Context) (string, error)
}

// EnvKeySource reads the key from an environment variable once per
// call, picking up rotations without a restart.
type EnvKeySource struct {
	Variable string
}

func (s EnvKeySource) CurrentKey(ctx context.Context) (string, error) {
	key := env.String(s.Variable, "")
	if key == "" {
		return "", errors.New(s.Variable + " is not set")
	}
	return key, nil
}

// Noop is the extractor used when no collaborator is configured; every
// query goes unanswered.
type Noop struct{}

func (Noop) Extract(ctx context.Context, query string) (Answer, error) {
	return Answer{}, ErrNoAnswer
}
