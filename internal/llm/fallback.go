package llm

import (
	"context"
)

// fallbackGen tries the primary generator and, when shouldFallBack accepts
// the error, retries the same prompt once on the secondary.
type fallbackGen struct {
	primary        TextGenerator
	secondary      TextGenerator
	shouldFallBack func(error) bool
}

// WithModelFallback wires primary-fails-then-secondary model substitution
// around the TextGenerator call signature. A nil classifier substitutes on
// every non-nil error except context cancellation. A nil secondary returns
// the primary unchanged.
func WithModelFallback(primary, secondary TextGenerator, classify func(error) bool) TextGenerator {
	if secondary == nil {
		return primary
	}
	if classify == nil {
		classify = func(err error) bool {
			return err != nil && ctxAlive(err)
		}
	}
	return &fallbackGen{primary: primary, secondary: secondary, shouldFallBack: classify}
}

func (f *fallbackGen) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := f.primary.GenerateContent(ctx, prompt)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil || !f.shouldFallBack(err) {
		return ContentResponse{}, err
	}
	return f.secondary.GenerateContent(ctx, prompt)
}

func ctxAlive(err error) bool {
	return err != context.Canceled && err != context.DeadlineExceeded
}
