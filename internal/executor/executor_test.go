package executor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/executor"
	"github.com/arosnov/schedhook/internal/repository"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- fakes ----

type fakeRunRepo struct {
	mu     sync.Mutex
	status domain.RunStatus
	fields repository.RunStatusFields
}

func (r *fakeRunRepo) Create(context.Context, *domain.Run) (*domain.Run, error) { return nil, nil }
func (r *fakeRunRepo) GetByID(context.Context, string) (*domain.Run, error)     { return nil, nil }
func (r *fakeRunRepo) List(context.Context, repository.ListRunsInput) ([]*domain.Run, error) {
	return nil, nil
}
func (r *fakeRunRepo) CountInFlight(context.Context, string) (int, error) { return 0, nil }

func (r *fakeRunRepo) UpdateStatus(_ context.Context, _ string, status domain.RunStatus, fields repository.RunStatusFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.fields = fields
	return nil
}

func (r *fakeRunRepo) BulkFailInFlight(context.Context) (int, error) { return 0, nil }

func (r *fakeRunRepo) terminal() (domain.RunStatus, repository.RunStatusFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.fields
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*domain.Attempt
}

func (r *fakeAttemptRepo) Create(_ context.Context, a *domain.Attempt) (*domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = fmt.Sprintf("attempt-%d", len(r.attempts)+1)
	r.attempts = append(r.attempts, a)
	return a, nil
}

func (r *fakeAttemptRepo) ListByRunID(context.Context, string) ([]*domain.Attempt, error) {
	return r.all(), nil
}

func (r *fakeAttemptRepo) all() []*domain.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

func newExecutor(runs *fakeRunRepo, atts *fakeAttemptRepo, maxRetries int, retryDelay time.Duration) *executor.Executor {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return executor.New(runs, atts, clk, slogDiscard(), executor.Config{
		MaxRetries:        maxRetries,
		RetryDelay:        retryDelay,
		MaxConcurrentJobs: 1,
	})
}

func testTarget(url string) *domain.Target {
	return &domain.Target{ID: "target-1", URL: url, Method: http.MethodPost, TimeoutSeconds: 5}
}

// ---- tests ----

// E3 scenario: three 503s then a 200 with MAX_RETRIES=3 succeeds on the 4th attempt.
// Exercises sequential Attempt numbering and the retry-until-exhaustion
// discipline together, since the 4th attempt both proves the loop kept
// going past three failures and that it stops retrying once it succeeds.
func TestExecutor_RetriesUntilExhaustionThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runs := &fakeRunRepo{}
	atts := &fakeAttemptRepo{}
	exec := newExecutor(runs, atts, 3, time.Millisecond)

	exec.Run(context.Background(), &domain.Run{ID: "run-1"}, testTarget(srv.URL))

	attempts := atts.all()
	if len(attempts) != 4 {
		t.Fatalf("expected 4 attempts (3 failures + 1 success), got %d", len(attempts))
	}
	for i, a := range attempts {
		if a.AttemptNumber != i+1 {
			t.Fatalf("attempt numbering not sequential: attempts[%d].AttemptNumber = %d", i, a.AttemptNumber)
		}
	}
	for _, a := range attempts[:3] {
		if a.ErrorClass != domain.ErrorHTTP5xx {
			t.Fatalf("expected http_5xx on a failed attempt, got %s", a.ErrorClass)
		}
	}
	if attempts[3].ErrorClass != domain.ErrorNone {
		t.Fatalf("expected the 4th attempt to succeed, got class %s", attempts[3].ErrorClass)
	}

	status, fields := runs.terminal()
	if status != domain.RunSucceeded {
		t.Fatalf("expected run to succeed on the 4th attempt, got %s", status)
	}
	if fields.AttemptCount == nil || *fields.AttemptCount != 4 {
		t.Fatalf("expected attempt_count 4, got %v", fields.AttemptCount)
	}
}

// All attempts fail: MAX_RETRIES=3 must cap the run at exactly 4 tries
// and record a terminal failure with an error message, not retry forever.
func TestExecutor_ExhaustsRetriesAndFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	runs := &fakeRunRepo{}
	atts := &fakeAttemptRepo{}
	exec := newExecutor(runs, atts, 3, time.Millisecond)

	exec.Run(context.Background(), &domain.Run{ID: "run-2"}, testTarget(srv.URL))

	attempts := atts.all()
	if len(attempts) != 4 {
		t.Fatalf("expected exactly MaxRetries+1 = 4 attempts, got %d", len(attempts))
	}

	status, fields := runs.terminal()
	if status != domain.RunFailed {
		t.Fatalf("expected run to fail after exhausting retries, got %s", status)
	}
	if fields.FinalError == nil || *fields.FinalError == "" {
		t.Fatal("expected a final_error message recorded on exhaustion")
	}
}

// A 4xx is not retriable: the run must fail after its first and only
// attempt regardless of remaining retry budget.
func TestExecutor_NonRetriable4xxStopsAfterOneAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	runs := &fakeRunRepo{}
	atts := &fakeAttemptRepo{}
	exec := newExecutor(runs, atts, 3, time.Millisecond)

	exec.Run(context.Background(), &domain.Run{ID: "run-3"}, testTarget(srv.URL))

	attempts := atts.all()
	if len(attempts) != 1 {
		t.Fatalf("expected a non-retriable 4xx to stop after one attempt, got %d attempts", len(attempts))
	}
	if attempts[0].ErrorClass != domain.ErrorHTTP4xx {
		t.Fatalf("expected http_4xx, got %s", attempts[0].ErrorClass)
	}
	if status, _ := runs.terminal(); status != domain.RunFailed {
		t.Fatalf("expected run to fail on a non-retriable 4xx, got %s", status)
	}
}

// Backoff must double deterministically (base*2^(n-1)) with no jitter,
// so consecutive gaps between attempts grow geometrically rather than
// randomly.
func TestExecutor_BackoffDoublesWithoutJitter(t *testing.T) {
	var mu sync.Mutex
	var seen []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	base := 20 * time.Millisecond
	runs := &fakeRunRepo{}
	atts := &fakeAttemptRepo{}
	exec := newExecutor(runs, atts, 3, base)

	exec.Run(context.Background(), &domain.Run{ID: "run-4"}, testTarget(srv.URL))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(seen))
	}

	gap1 := seen[1].Sub(seen[0])
	gap2 := seen[2].Sub(seen[1])
	gap3 := seen[3].Sub(seen[2])

	// Require the doubling trend rather than exact durations, since
	// scheduling jitter on the test machine perturbs absolute timing.
	if ratio := float64(gap2) / float64(gap1); ratio < 1.3 {
		t.Fatalf("expected second gap to roughly double the first, ratio=%.2f gap1=%v gap2=%v", ratio, gap1, gap2)
	}
	if ratio := float64(gap3) / float64(gap2); ratio < 1.3 {
		t.Fatalf("expected third gap to roughly double the second, ratio=%.2f gap2=%v gap3=%v", ratio, gap2, gap3)
	}
}

// A response body over MaxResponseBodyBytes is stored truncated with
// the documented suffix, never buffered or persisted whole.
func TestExecutor_TruncatesOversizedResponseBody(t *testing.T) {
	oversized := strings.Repeat("a", domain.MaxResponseBodyBytes+4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, oversized)
	}))
	defer srv.Close()

	runs := &fakeRunRepo{}
	atts := &fakeAttemptRepo{}
	exec := newExecutor(runs, atts, 3, time.Millisecond)

	exec.Run(context.Background(), &domain.Run{ID: "run-5"}, testTarget(srv.URL))

	attempts := atts.all()
	if len(attempts) != 1 {
		t.Fatalf("expected a single successful attempt, got %d", len(attempts))
	}
	body := attempts[0].ResponseBody
	if body == nil {
		t.Fatal("expected a stored response body")
	}
	wantLen := domain.MaxResponseBodyBytes + len(domain.TruncationSuffix)
	if len(*body) != wantLen {
		t.Fatalf("expected truncated body length %d, got %d", wantLen, len(*body))
	}
	if !strings.HasSuffix(*body, domain.TruncationSuffix) {
		t.Fatalf("expected truncated body to end with %q", domain.TruncationSuffix)
	}
}
