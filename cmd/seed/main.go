// seed inserts a handful of targets and schedules into the local dev
// database so the scheduler has something to fire against right away.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/arosnov/schedhook/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5"
)

type targetSpec struct {
	name   string
	url    string
	method string
}

var targets = []targetSpec{
	{"seed-httpbin-post", "https://httpbin.org/post", "POST"},
	{"seed-httpbin-get", "https://httpbin.org/get", "GET"},
	{"seed-httpbin-flaky-500", "https://httpbin.org/status/500", "POST"},
	{"seed-httpbin-not-found", "https://httpbin.org/status/404", "GET"},
}

type scheduleSpec struct {
	name            string
	targetName      string
	scheduleType    string
	intervalSeconds *int
	cronExpression  *string
	maxRuns         *int
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

var schedules = []scheduleSpec{
	{"seed-every-minute", "seed-httpbin-get", "interval", intp(60), nil, intp(5)},
	{"seed-every-five-minutes", "seed-httpbin-post", "interval", intp(300), nil, nil},
	{"seed-hourly-cron", "seed-httpbin-flaky-500", "cron", nil, strp("0 * * * *"), intp(10)},
	{"seed-daily-cron", "seed-httpbin-not-found", "cron", nil, strp("0 9 * * *"), nil},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	targetIDs := make(map[string]string, len(targets))
	var upsertedTargets int

	for _, spec := range targets {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO targets (name, url, method, headers, timeout_seconds)
			VALUES ($1, $2, $3, '{}', 30)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			spec.name, spec.url, spec.method,
		).Scan(&id)
		if err != nil {
			log.Fatalf("upsert target %s: %v", spec.name, err)
		}
		targetIDs[spec.name] = id
		upsertedTargets++
	}

	startAt := time.Now().Add(30 * time.Second)
	var insertedSchedules, skippedSchedules int

	for _, spec := range schedules {
		targetID, ok := targetIDs[spec.targetName]
		if !ok {
			log.Fatalf("schedule %s references unknown target %s", spec.name, spec.targetName)
		}

		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO schedules (
				name, target_id, schedule_type, interval_seconds, cron_expression,
				start_at, duration_seconds, max_runs, status, runs_count, next_run_at
			) VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, 'active', 0, $6)
			ON CONFLICT (name) DO NOTHING
			RETURNING id`,
			spec.name, targetID, spec.scheduleType, spec.intervalSeconds, spec.cronExpression,
			startAt, spec.maxRuns,
		).Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			skippedSchedules++
		case err != nil:
			log.Fatalf("insert schedule %s: %v", spec.name, err)
		default:
			insertedSchedules++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Targets upserted:   %d\n", upsertedTargets)
	fmt.Printf("  Schedules created:  %d (skipped %d already existing)\n", insertedSchedules, skippedSchedules)
	fmt.Printf("  First firings from: %s\n", startAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("The scheduler process only arms schedules it sees via ListActive at")
	fmt.Println("startup, or via OnScheduleCreated through the API — restart it (or")
	fmt.Println("run this before it starts) to pick these up.")
}
