package llm

import (
	"context"
	"time"
)

// WithRetry decorates a TextGenerator with bounded exponential-backoff
// retries starting at baseDelay. Context cancellation and permanent errors
// stop the loop immediately.
func WithRetry(next TextGenerator, maxAttempts int, baseDelay time.Duration) TextGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &retrying{next: next, max: maxAttempts, base: baseDelay}
}

type retrying struct {
	next TextGenerator
	max  int
	base time.Duration
}

func (r *retrying) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.GenerateContent(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if IsPermanent(err) {
			return ContentResponse{}, err
		}
		last = err

		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ContentResponse{}, ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return ContentResponse{}, last
}
