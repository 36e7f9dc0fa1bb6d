package automation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PlanKey is the dedup key for suggestions produced by registry plans.
func PlanKey(planID string) string { return "plan:" + planID }

// TitleKey is the dedup key for system check suggestions, which are matched
// on their exact title.
func TitleKey(title string) string { return "title:" + title }

// NewSuggestion renders a payload into a pending suggestion.
func NewSuggestion(planID, dedupKey string, payload ActionPayload, now time.Time) Suggestion {
	s := Suggestion{
		PlanID:      planID,
		DedupKey:    dedupKey,
		Title:       payload.Title,
		Message:     payload.Message,
		Icon:        payload.Icon,
		Priority:    payload.Priority,
		ActionLabel: payload.ActionLabel,
		Dismissable: true,
		CreatedAt:   now,
	}
	if payload.TTL > 0 {
		exp := now.Add(payload.TTL)
		s.ExpiresAt = &exp
	}
	return s
}

// SuggestionStore holds pending suggestions, newest first, with at most one
// suggestion per dedup key.
type SuggestionStore struct {
	mu    sync.RWMutex
	items []Suggestion
}

// NewSuggestionStore returns an empty store.
func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{}
}

// Add inserts candidate unless a pending suggestion shares its dedup key.
// The stored suggestion gets a fresh id.
func (s *SuggestionStore) Add(candidate Suggestion) (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupKey(candidate)
	for _, existing := range s.items {
		if dedupKey(existing) == key {
			return Suggestion{}, false
		}
	}
	candidate.ID = uuid.NewString()
	candidate.DedupKey = key
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now()
	}
	s.items = append([]Suggestion{candidate}, s.items...)
	return candidate, true
}

// Dismiss removes the suggestion with the given id.
func (s *SuggestionStore) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// SweepExpired removes every suggestion whose expiry is at or before now and
// returns them.
func (s *SuggestionStore) SweepExpired(now time.Time) []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []Suggestion
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ExpiresAt != nil && !item.ExpiresAt.After(now) {
			expired = append(expired, item)
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return expired
}

// List returns the pending suggestions, newest first.
func (s *SuggestionStore) List() []Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Suggestion, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of pending suggestions.
func (s *SuggestionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Restore replaces the store contents with saved suggestions. Entries are
// re-sorted newest first and later duplicates of a key are dropped.
func (s *SuggestionStore) Restore(saved []Suggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]Suggestion, len(saved))
	copy(sorted, saved)
	sortNewestFirst(sorted)
	seen := make(map[string]struct{}, len(sorted))
	s.items = s.items[:0]
	for _, item := range sorted {
		if item.ID == "" {
			continue
		}
		key := dedupKey(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		item.DedupKey = key
		s.items = append(s.items, item)
	}
}

func dedupKey(s Suggestion) string {
	if s.DedupKey != "" {
		return s.DedupKey
	}
	return PlanKey(s.PlanID)
}

func sortNewestFirst(items []Suggestion) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
