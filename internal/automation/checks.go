package automation

import (
	"fmt"
	"time"
)

const (
	// SystemPlanID tags suggestions and log entries from system checks.
	SystemPlanID = "system"
	// SystemCorePlanID tags engine-level warnings such as snapshot failures
	// and cycle timeouts.
	SystemCorePlanID = "system_core"
	// SystemCoreName is the display name for engine-level warnings.
	SystemCoreName = "System Core"
)

// Titles of the system check suggestions. They double as dedup keys.
const (
	ExpiryWarningTitle = "⏳ Thẻ hội viên sắp hết hạn"
	MonotonyTitle      = "🛑 Cảnh báo Lặp Bài"
)

const (
	expiryWarningDays   = 3
	monotonyRun         = 3
	monotonyRecency     = 48 * time.Hour
	systemSuggestionTTL = 24 * time.Hour
)

// Check is a rule evaluated every cycle outside the plan registry. Its
// suggestions are deduplicated by title.
type Check struct {
	ID   string
	Name string
	Run  func(Context) (ActionPayload, bool, error)
}

// SystemChecks returns the built-in checks in evaluation order.
func SystemChecks() []Check {
	return []Check{
		{ID: "expiry_warning", Name: "Membership Expiry Watch", Run: expiryWarning},
		{ID: "monotony", Name: "Exercise Monotony Watch", Run: monotony},
	}
}

func expiryWarning(c Context) (ActionPayload, bool, error) {
	if c.Subject == nil || c.Subject.ExpiresAt == nil {
		return ActionPayload{}, false, nil
	}
	days := CalendarDaysBetween(c.Now, *c.Subject.ExpiresAt)
	if days < 0 || days > expiryWarningDays {
		return ActionPayload{}, false, nil
	}
	msg := fmt.Sprintf("Thẻ hội viên của %s hết hạn sau %d ngày. Gia hạn ngay để không gián đoạn lịch tập.", c.Subject.Name, days)
	if days == 0 {
		msg = fmt.Sprintf("Thẻ hội viên của %s hết hạn hôm nay. Gia hạn ngay để không gián đoạn lịch tập.", c.Subject.Name)
	}
	return ActionPayload{
		Title:       ExpiryWarningTitle,
		Message:     msg,
		Icon:        "alert-triangle",
		Priority:    PriorityHigh,
		ActionLabel: "Gia hạn",
		TTL:         systemSuggestionTTL,
	}, true, nil
}

func monotony(c Context) (ActionPayload, bool, error) {
	if len(c.Workouts) < monotonyRun {
		return ActionPayload{}, false, nil
	}
	recent := c.Workouts[:monotonyRun]
	name := recent[0].Exercise
	if name == "" {
		return ActionPayload{}, false, nil
	}
	for _, w := range recent[1:] {
		if w.Exercise != name {
			return ActionPayload{}, false, nil
		}
	}
	if c.Now.Sub(recent[0].PerformedAt) > monotonyRecency {
		return ActionPayload{}, false, nil
	}
	return ActionPayload{
		Title:       MonotonyTitle,
		Message:     fmt.Sprintf("3 buổi gần nhất bạn đều tập %s. Hãy đổi nhóm cơ để tránh chấn thương.", name),
		Icon:        "octagon",
		Priority:    PriorityHigh,
		ActionLabel: "Gợi ý bài khác",
		TTL:         systemSuggestionTTL,
	}, true, nil
}

// CalendarDaysBetween counts calendar days from a to b in a's location.
func CalendarDaysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start) / (24 * time.Hour))
}
