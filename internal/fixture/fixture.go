// Package fixture provides a context source described by a YAML file, for
// offline cycles and demos. Times are relative to the cycle's clock.
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sbenjam1n/autopilot/internal/automation"
	"gopkg.in/yaml.v3"
)

// Subject describes the member. Nil day offsets leave the field unset.
type Subject struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	DateOfBirth       string `yaml:"date_of_birth"`
	LastActiveDaysAgo *int   `yaml:"last_active_days_ago"`
	JoinedDaysAgo     int    `yaml:"joined_days_ago"`
	ExpiresInDays     *int   `yaml:"expires_in_days"`
}

// Workout is one history entry. DaysAgo and HoursAgo add up.
type Workout struct {
	Exercise string `yaml:"exercise"`
	DaysAgo  int    `yaml:"days_ago"`
	HoursAgo int    `yaml:"hours_ago"`
}

// File is the fixture document.
type File struct {
	Subject  *Subject  `yaml:"subject"`
	Workouts []Workout `yaml:"workouts"`
}

// Source serves the fixture as a cycle context.
type Source struct {
	file File
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Source, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("fixture: document is empty")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture: decode: %w", err)
	}
	for i, w := range f.Workouts {
		if w.Exercise == "" {
			return nil, fmt.Errorf("fixture: workout %d: exercise is required", i)
		}
		if w.DaysAgo < 0 || w.HoursAgo < 0 {
			return nil, fmt.Errorf("fixture: workout %d: offsets must not be negative", i)
		}
	}
	return &Source{file: f}, nil
}

// Load reads a fixture file from disk.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	src, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture: %s: %w", path, err)
	}
	return src, nil
}

// Snapshot materializes the fixture against now. Workouts are returned
// newest first regardless of file order.
func (s *Source) Snapshot(_ context.Context, now time.Time) (automation.Context, error) {
	c := automation.Context{Now: now}
	if fs := s.file.Subject; fs != nil {
		subj := &automation.Subject{
			ID:          fs.ID,
			Name:        fs.Name,
			DateOfBirth: fs.DateOfBirth,
			JoinedAt:    now.AddDate(0, 0, -fs.JoinedDaysAgo),
		}
		if fs.LastActiveDaysAgo != nil {
			t := now.AddDate(0, 0, -*fs.LastActiveDaysAgo)
			subj.LastActiveAt = &t
		}
		if fs.ExpiresInDays != nil {
			t := now.AddDate(0, 0, *fs.ExpiresInDays)
			subj.ExpiresAt = &t
		}
		c.Subject = subj
	}
	for _, w := range s.file.Workouts {
		at := now.AddDate(0, 0, -w.DaysAgo).Add(-time.Duration(w.HoursAgo) * time.Hour)
		c.Workouts = append(c.Workouts, automation.Workout{Exercise: w.Exercise, PerformedAt: at})
	}
	sortNewestFirst(c.Workouts)
	return c, nil
}

func sortNewestFirst(ws []automation.Workout) {
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].PerformedAt.After(ws[j].PerformedAt)
	})
}
