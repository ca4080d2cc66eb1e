// Package executor performs the outbound HTTP call for a fired Run:
// materializing the request from its Target, retrying with
// exponential backoff, classifying failures, truncating oversized
// response bodies, and persisting the Attempt/Run trail. It never
// raises an error to its caller — every terminal outcome is expressed
// as written state.
package executor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arosnov/schedhook/internal/clock"
	"github.com/arosnov/schedhook/internal/domain"
	"github.com/arosnov/schedhook/internal/metrics"
	"github.com/arosnov/schedhook/internal/repository"
	"github.com/arosnov/schedhook/internal/requestid"
)

// Config tunes retry behavior; all values come from the module's
// environment configuration.
type Config struct {
	MaxRetries        int           // additional attempts beyond the first
	RetryDelay        time.Duration // base delay for exponential backoff
	MaxConcurrentJobs int
}

// Executor performs Run execution. Safe for concurrent use — each
// Run() call is independent; the worker pool bounds concurrency.
type Executor struct {
	client *http.Client
	runs   repository.RunRepository
	atts   repository.AttemptRepository
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config
}

// New builds an Executor with a hardened http.Client: a TLS floor,
// pooled connections, bounded redirects, and a generous outer timeout
// as a safety net behind the per-attempt context deadline.
func New(runs repository.RunRepository, atts repository.AttemptRepository, c clock.Clock, logger *slog.Logger, cfg Config) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		runs:   runs,
		atts:   atts,
		clock:  c,
		logger: logger.With("component", "executor"),
		cfg:    cfg,
	}
}

// Run executes one fired Run against its Target: marks it running,
// drives the attempt/retry loop, and writes the terminal Run status.
// This is the worker-pool entry point — callers submit Runs to a
// bounded channel and call Run() from a fixed set of goroutines.
func (e *Executor) Run(ctx context.Context, run *domain.Run, target *domain.Target) {
	startedAt := e.clock.Now()
	if err := e.runs.UpdateStatus(ctx, run.ID, domain.RunRunning, repository.RunStatusFields{StartedAt: &startedAt}); err != nil {
		e.logger.ErrorContext(ctx, "mark run running", "run_id", run.ID, "error", err)
		return
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	var (
		lastErr       string
		attemptNumber int
		finalStatus   domain.RunStatus
	)

	totalTries := e.cfg.MaxRetries + 1
	for attemptNumber = 1; attemptNumber <= totalTries; attemptNumber++ {
		outcome := e.attempt(ctx, run, target, attemptNumber)
		lastErr = outcome.errMessage

		if outcome.class == domain.ErrorNone {
			finalStatus = domain.RunSucceeded
			lastErr = ""
			break
		}
		if !outcome.class.Retriable() || attemptNumber == totalTries {
			finalStatus = domain.RunFailed
			break
		}

		delay := backoff(e.cfg.RetryDelay, attemptNumber)
		e.logger.InfoContext(ctx, "run attempt failed, retrying",
			"run_id", run.ID, "attempt", attemptNumber, "class", outcome.class, "delay", delay)
		select {
		case <-ctx.Done():
			finalStatus = domain.RunFailed
			lastErr = ctx.Err().Error()
			goto done
		case <-time.After(delay):
		}
	}
done:
	if attemptNumber > totalTries {
		attemptNumber = totalTries
	}

	completedAt := e.clock.Now()
	fields := repository.RunStatusFields{
		CompletedAt:  &completedAt,
		AttemptCount: &attemptNumber,
	}
	if finalStatus == domain.RunFailed {
		fields.FinalError = &lastErr
	}
	if err := e.runs.UpdateStatus(ctx, run.ID, finalStatus, fields); err != nil {
		e.logger.ErrorContext(ctx, "write terminal run status", "run_id", run.ID, "error", err)
	}
	metrics.RunsCompletedTotal.WithLabelValues(string(finalStatus)).Inc()
}

type attemptOutcome struct {
	class      domain.ErrorClass
	errMessage string
}

// attempt performs one HTTP try and persists its Attempt record.
func (e *Executor) attempt(ctx context.Context, run *domain.Run, target *domain.Target, attemptNumber int) attemptOutcome {
	start := e.clock.Now()

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(target.TimeoutSeconds)*time.Second)
	defer cancel()

	var bodyReader io.Reader
	var requestBody *string
	if target.BodyTemplate != nil {
		bodyReader = strings.NewReader(*target.BodyTemplate)
		requestBody = target.BodyTemplate
	}

	req, err := http.NewRequestWithContext(attemptCtx, target.Method, target.URL, bodyReader)
	if err != nil {
		return e.finishAttempt(ctx, run, attemptNumber, target, requestBody, start, nil, nil, domain.ErrorUnknown, fmt.Errorf("build request: %w", err))
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	attemptCtx = requestid.WithRequestID(attemptCtx, reqID)
	req = req.WithContext(attemptCtx)

	e.logger.InfoContext(attemptCtx, "sending attempt",
		"run_id", run.ID, "attempt", attemptNumber, "method", target.Method, "url", target.URL)

	resp, doErr := e.client.Do(req)
	if doErr != nil {
		class := classify(0, doErr)
		e.logger.ErrorContext(attemptCtx, "attempt request failed", "run_id", run.ID, "attempt", attemptNumber, "error", doErr, "class", class)
		return e.finishAttempt(ctx, run, attemptNumber, target, requestBody, start, nil, nil, class, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, readErr := readTruncated(resp.Body)
	if readErr != nil {
		class := classify(0, readErr)
		return e.finishAttempt(ctx, run, attemptNumber, target, requestBody, start, resp, nil, class, readErr)
	}

	class := classify(statusCodeOf(resp), nil)
	var attemptErr error
	if class != domain.ErrorNone {
		attemptErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	e.logger.InfoContext(attemptCtx, "received response",
		"run_id", run.ID, "attempt", attemptNumber, "status", resp.StatusCode, "duration", e.clock.Now().Sub(start))

	return e.finishAttempt(ctx, run, attemptNumber, target, requestBody, start, resp, &respBody, class, attemptErr)
}

// finishAttempt persists the Attempt and returns its outcome for the
// retry loop to interpret.
func (e *Executor) finishAttempt(
	ctx context.Context,
	run *domain.Run,
	attemptNumber int,
	target *domain.Target,
	requestBody *string,
	start time.Time,
	resp *http.Response,
	respBody *string,
	class domain.ErrorClass,
	attemptErr error,
) attemptOutcome {
	end := e.clock.Now()

	a := &domain.Attempt{
		RunID:          run.ID,
		AttemptNumber:  attemptNumber,
		RequestURL:     target.URL,
		RequestMethod:  target.Method,
		RequestHeaders: target.Headers,
		RequestBody:    requestBody,
		ErrorClass:     class,
		DurationMS:     end.Sub(start).Milliseconds(),
		StartedAt:      start,
		CompletedAt:    end,
	}
	if resp != nil {
		status := resp.StatusCode
		a.ResponseStatus = &status
		a.ResponseHeaders = flattenHeader(resp.Header)
	}
	if respBody != nil {
		a.ResponseBody = respBody
	}

	var errMsg string
	if attemptErr != nil {
		errMsg = attemptErr.Error()
		a.ErrorMessage = &errMsg
	}

	metrics.AttemptDuration.WithLabelValues(string(class)).Observe(end.Sub(start).Seconds())

	if _, err := e.atts.Create(ctx, a); err != nil {
		e.logger.ErrorContext(ctx, "persist attempt", "run_id", run.ID, "attempt", attemptNumber, "error", err)
	}

	return attemptOutcome{class: class, errMessage: errMsg}
}

// readTruncated drains resp.Body, keeping at most
// domain.MaxResponseBodyBytes+1 of it in memory (the +1 lets us detect
// truncation without buffering the whole body), then discards the
// remainder so the connection can be reused by the pool — the
// teacher's "always drain" discipline from scheduler/executor.go.
func readTruncated(body io.Reader) (string, error) {
	limited := io.LimitReader(body, domain.MaxResponseBodyBytes+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	_, _ = io.Copy(io.Discard, body)
	return domain.Truncate(string(buf)), nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// backoff computes base * 2^(attemptNumber-1). Deliberately no jitter:
// see DESIGN.md — deterministic inter-attempt gaps matter more here
// than thundering-herd avoidance, since each schedule fires at most
// one in-flight Run at a time.
func backoff(base time.Duration, attemptNumber int) time.Duration {
	d := base
	for i := 1; i < attemptNumber; i++ {
		d *= 2
	}
	return d
}
