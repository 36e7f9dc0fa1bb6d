package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sbenjam1n/autopilot/internal/automation"
)

// DefaultWorkoutHistory is how many recent workouts a snapshot carries.
const DefaultWorkoutHistory = 10

// Source builds cycle snapshots from the member database. It evaluates a
// single representative member: the earliest-joined active one.
type Source struct {
	pool    *pgxpool.Pool
	history int
}

// NewSource creates a context source on pool.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool, history: DefaultWorkoutHistory}
}

// Snapshot loads the representative member and their recent workouts. No
// active member yields a context without a subject.
func (s *Source) Snapshot(ctx context.Context, now time.Time) (automation.Context, error) {
	c := automation.Context{Now: now}

	subject, err := s.activeSubject(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	c.Subject = subject

	workouts, err := s.recentWorkouts(ctx, subject.ID)
	if err != nil {
		return c, err
	}
	c.Workouts = workouts
	return c, nil
}

func (s *Source) activeSubject(ctx context.Context) (*automation.Subject, error) {
	var (
		subj automation.Subject
		dob  *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.name, m.date_of_birth,
		       COALESCE(m.last_active_at, (
		           SELECT MAX(w.performed_at) FROM workout_logs w WHERE w.member_id = m.id
		       )),
		       m.joined_at, m.expires_at
		FROM members m
		WHERE m.status = 'active'
		ORDER BY m.joined_at, m.id
		LIMIT 1
	`).Scan(&subj.ID, &subj.Name, &dob, &subj.LastActiveAt, &subj.JoinedAt, &subj.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch active member: %w", err)
	}
	if dob != nil {
		subj.DateOfBirth = *dob
	}
	return &subj, nil
}

func (s *Source) recentWorkouts(ctx context.Context, memberID string) ([]automation.Workout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT exercise_name, performed_at
		FROM workout_logs
		WHERE member_id = $1
		ORDER BY performed_at DESC, id DESC
		LIMIT $2
	`, memberID, s.history)
	if err != nil {
		return nil, fmt.Errorf("fetch workouts for %s: %w", memberID, err)
	}
	workouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (automation.Workout, error) {
		var w automation.Workout
		err := row.Scan(&w.Exercise, &w.PerformedAt)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan workouts for %s: %w", memberID, err)
	}
	return workouts, nil
}
