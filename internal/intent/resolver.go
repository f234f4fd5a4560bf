// Package intent turns raw utterances into typed intents with extracted
// entities and a confidence score.
package intent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/masarif/masarif-backend/internal/model"
)

// Request carries one utterance plus its language hint and recent history.
type Request struct {
	Text     string   `json:"text"`
	Language string   `json:"languageHint"`
	History  []string `json:"history,omitempty"`
}

// Resolver classifies an utterance. Implementations never fail on unmatched
// input; they return IntentNone with confidence 0 instead.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (model.Resolution, error)
}

// fallbackResolver tries the primary resolver and silently falls through to
// the secondary on any error, timeout, or malformed result. Upstream
// unavailability is recovered here and never reaches the caller.
type fallbackResolver struct {
	primary   Resolver
	secondary Resolver
	log       zerolog.Logger
}

// WithFallback composes two resolvers. primary may be nil, in which case the
// secondary is used directly.
func WithFallback(primary, secondary Resolver, log zerolog.Logger) Resolver {
	return &fallbackResolver{primary: primary, secondary: secondary, log: log}
}

func (f *fallbackResolver) Resolve(ctx context.Context, req Request) (model.Resolution, error) {
	if f.primary != nil {
		res, err := f.primary.Resolve(ctx, req)
		if err == nil && validShape(res) {
			return res, nil
		}
		if err != nil {
			f.log.Warn().Err(err).Msg("primary intent resolver unavailable, using fallback")
		} else {
			f.log.Warn().Str("intent", string(res.Intent)).Msg("primary intent resolver returned malformed result, using fallback")
		}
	}
	return f.secondary.Resolve(ctx, req)
}

func validShape(r model.Resolution) bool {
	return model.ValidIntentKind(r.Intent) && r.Confidence >= 0 && r.Confidence <= 1
}
