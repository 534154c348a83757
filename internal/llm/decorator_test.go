package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedGen struct {
	responses []ContentResponse
	errs      []error
	calls     int
}

func (s *scriptedGen) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	if s.errs[i] != nil {
		return ContentResponse{}, s.errs[i]
	}
	return s.responses[i], nil
}

func TestWithRetryRecovers(t *testing.T) {
	gen := &scriptedGen{
		responses: []ContentResponse{{}, {Content: `{"ok":true}`}},
		errs:      []error{errors.New("transient"), nil},
	}
	out, err := WithRetry(gen, 3, time.Millisecond).GenerateContent(context.Background(), "p")
	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if out.Content != `{"ok":true}` {
		t.Errorf("Unexpected content %q", out.Content)
	}
	if gen.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", gen.calls)
	}
}

func TestWithRetryBounded(t *testing.T) {
	gen := &scriptedGen{
		responses: []ContentResponse{{}},
		errs:      []error{errors.New("always")},
	}
	_, err := WithRetry(gen, 3, time.Millisecond).GenerateContent(context.Background(), "p")
	if err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if gen.calls != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", gen.calls)
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	gen := &scriptedGen{
		responses: []ContentResponse{{}},
		errs:      []error{Permanent(errors.New("bad key"))},
	}
	_, err := WithRetry(gen, 5, time.Millisecond).GenerateContent(context.Background(), "p")
	if !IsPermanent(err) {
		t.Fatalf("Expected permanent error, got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", gen.calls)
	}
}

func TestWithModelFallback(t *testing.T) {
	primary := &scriptedGen{
		responses: []ContentResponse{{}},
		errs:      []error{errors.New("primary down")},
	}
	secondary := &scriptedGen{
		responses: []ContentResponse{{Content: "from secondary"}},
		errs:      []error{nil},
	}
	out, err := WithModelFallback(primary, secondary, nil).GenerateContent(context.Background(), "p")
	if err != nil {
		t.Fatalf("Expected secondary to answer, got %v", err)
	}
	if out.Content != "from secondary" {
		t.Errorf("Unexpected content %q", out.Content)
	}
}

func TestWithModelFallbackNilSecondary(t *testing.T) {
	wantErr := errors.New("primary down")
	primary := &scriptedGen{responses: []ContentResponse{{}}, errs: []error{wantErr}}
	_, err := WithModelFallback(primary, nil, nil).GenerateContent(context.Background(), "p")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected the primary error to pass through, got %v", err)
	}
}
