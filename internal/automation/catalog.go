package automation

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Hour windows and thresholds used by the built-in plans.
var (
	MorningWindow   = HourWindow{From: 6, Until: 9}
	BedtimeWindow   = HourWindow{From: 22, Until: 24}
	HydrationWindow = HourWindow{From: 14, Until: 16}
)

const (
	// InactivityThresholdDays is how long a member may go without training
	// before the comeback nudge fires.
	InactivityThresholdDays = 3
	// PreWorkoutHour is two hours before the 17:00 group session.
	PreWorkoutHour = 15
	// DinnerHour is when the evening meal reminder fires.
	DinnerHour = 19
	// CooldownWindow is how soon after a workout the stretch reminder fires.
	CooldownWindow = 2 * time.Hour
)

// DefaultPlans returns the built-in plan catalog.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:               "energy_001",
			Name:             "Khởi động buổi sáng",
			Description:      "Gợi ý vận động nhẹ vào đầu ngày",
			TriggerType:      TriggerTimeBased,
			TriggerCondition: "06:00 <= giờ hiện tại < 09:00",
			ActionType:       ActionSuggestion,
			ActionPayload: ActionPayload{
				Title:       "☀️ Khởi động ngày mới",
				Message:     "5 phút giãn cơ và một cốc nước ấm giúp bạn tỉnh táo cả buổi sáng.",
				Icon:        "sun",
				Priority:    PriorityMedium,
				ActionLabel: "Bắt đầu",
				TTL:         3 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryEnergy,
		},
		{
			ID:               "energy_002",
			Name:             "Giờ đi ngủ",
			Description:      "Nhắc nghỉ ngơi để phục hồi cơ bắp",
			TriggerType:      TriggerTimeBased,
			TriggerCondition: "giờ hiện tại >= 22:00",
			ActionType:       ActionNotification,
			ActionPayload: ActionPayload{
				Title:    "🌙 Đến giờ nghỉ ngơi",
				Message:  "Ngủ đủ 7-8 tiếng giúp cơ bắp phục hồi tốt nhất.",
				Icon:     "moon",
				Priority: PriorityLow,
				TTL:      2 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryEnergy,
		},
		{
			ID:               "energy_003",
			Name:             "Trời nóng",
			Description:      "Điều chỉnh cường độ khi thời tiết nắng nóng",
			TriggerType:      TriggerWeather,
			TriggerCondition: "nhiệt độ ngoài trời > 35°C",
			ActionType:       ActionModeSwitch,
			ActionPayload: ActionPayload{
				Title:       "🔥 Chế độ tập trời nóng",
				Message:     "Hôm nay nên tập trong nhà và giảm 20% cường độ.",
				Icon:        "thermometer",
				Priority:    PriorityMedium,
				ActionLabel: "Đổi chế độ",
				TTL:         6 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryEnergy,
		},
		{
			ID:               "training_001",
			Name:             "Nạp năng lượng trước buổi tập",
			Description:      "Nhắc ăn nhẹ 2 tiếng trước buổi tập 17:00",
			TriggerType:      TriggerTimeBased,
			TriggerCondition: "giờ hiện tại = 15:00",
			ActionType:       ActionNotification,
			ActionPayload: ActionPayload{
				Title:    "🍌 Nạp năng lượng",
				Message:  "Còn 2 tiếng nữa là buổi tập. Một quả chuối và ít hạt là đủ.",
				Icon:     "zap",
				Priority: PriorityMedium,
				TTL:      time.Hour,
			},
			Enabled:  true,
			Category: CategoryTraining,
		},
		{
			ID:               "training_002",
			Name:             "Giãn cơ sau tập",
			Description:      "Nhắc giãn cơ ngay sau khi ghi nhận bài tập",
			TriggerType:      TriggerWorkoutEvent,
			TriggerCondition: "bài tập gần nhất trong vòng 2 giờ",
			ActionType:       ActionSuggestion,
			ActionPayload: ActionPayload{
				Title:       "🧘 Giãn cơ sau tập",
				Message:     "10 phút giãn cơ giảm đau mỏi cho ngày mai.",
				Icon:        "stretch",
				Priority:    PriorityLow,
				ActionLabel: "Xem bài giãn cơ",
				TTL:         2 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryTraining,
		},
		{
			ID:               "training_003",
			Name:             "Tự động xếp lịch",
			Description:      "Đề xuất lịch tập tuần tới",
			TriggerType:      TriggerManual,
			TriggerCondition: "hội viên yêu cầu",
			ActionType:       ActionAutoSchedule,
			ActionPayload: ActionPayload{
				Title:       "📅 Lịch tập tuần tới",
				Message:     "Đã có đề xuất lịch tập dựa trên tuần vừa rồi.",
				Icon:        "calendar",
				Priority:    PriorityLow,
				ActionLabel: "Xem lịch",
			},
			Enabled:  false,
			Category: CategoryTraining,
		},
		{
			ID:               "nutrition_001",
			Name:             "Uống nước buổi chiều",
			Description:      "Nhắc bổ sung nước giữa buổi chiều",
			TriggerType:      TriggerHealthMetric,
			TriggerCondition: "14:00 <= giờ hiện tại < 16:00",
			ActionType:       ActionNotification,
			ActionPayload: ActionPayload{
				Title:    "💧 Uống nước",
				Message:  "Bạn đã uống đủ 2 lít nước hôm nay chưa?",
				Icon:     "droplet",
				Priority: PriorityLow,
				TTL:      2 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryNutrition,
		},
		{
			ID:               "nutrition_002",
			Name:             "Bữa tối lành mạnh",
			Description:      "Gợi ý bữa tối giàu đạm",
			TriggerType:      TriggerTimeBased,
			TriggerCondition: "giờ hiện tại = 19:00",
			ActionType:       ActionSuggestion,
			ActionPayload: ActionPayload{
				Title:       "🥗 Bữa tối giàu đạm",
				Message:     "Ức gà, cá hoặc đậu phụ kèm rau xanh cho bữa tối.",
				Icon:        "utensils",
				Priority:    PriorityLow,
				ActionLabel: "Xem thực đơn",
				TTL:         time.Hour,
			},
			Enabled:  true,
			Category: CategoryNutrition,
		},
		{
			ID:               "mindset_001",
			Name:             "Quay lại phòng tập",
			Description:      "Nhắc hội viên đã nghỉ tập nhiều ngày",
			TriggerType:      TriggerStreak,
			TriggerCondition: "số ngày không tập >= 3",
			ActionType:       ActionWarning,
			ActionPayload: ActionPayload{
				Title:       "💪 Nhớ bạn rồi đó!",
				Message:     "Bạn đã nghỉ tập vài ngày.",
				Icon:        "heart",
				Priority:    PriorityHigh,
				ActionLabel: "Đặt lịch tập",
				TTL:         24 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryMindset,
		},
		{
			ID:               "mindset_002",
			Name:             "Chúc mừng sinh nhật",
			Description:      "Gửi lời chúc vào ngày sinh nhật hội viên",
			TriggerType:      TriggerTimeBased,
			TriggerCondition: "ngày/tháng sinh = hôm nay",
			ActionType:       ActionReward,
			ActionPayload: ActionPayload{
				Title:    "🎂 Sinh nhật vui vẻ",
				Message:  "Chúc mừng sinh nhật!",
				Icon:     "gift",
				Priority: PriorityHigh,
				TTL:      24 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryMindset,
		},
		{
			ID:               "mindset_003",
			Name:             "Kỷ niệm gia nhập",
			Description:      "Chúc mừng mỗi năm gắn bó với phòng tập",
			TriggerType:      TriggerStreak,
			TriggerCondition: "ngày/tháng gia nhập = hôm nay",
			ActionType:       ActionReward,
			ActionPayload: ActionPayload{
				Title:    "🏅 Kỷ niệm gia nhập",
				Message:  "Cảm ơn bạn đã đồng hành!",
				Icon:     "award",
				Priority: PriorityMedium,
				TTL:      24 * time.Hour,
			},
			Enabled:  true,
			Category: CategoryMindset,
		},
	}
}

func builtinPredicates() map[string]Predicate {
	return map[string]Predicate{
		"energy_001":    InWindow(MorningWindow),
		"energy_002":    InWindow(BedtimeWindow),
		"training_001":  AtHour(PreWorkoutHour),
		"training_002":  AfterWorkout(CooldownWindow),
		"nutrition_001": InWindow(HydrationWindow),
		"nutrition_002": AtHour(DinnerHour),

		"mindset_001": InactiveFor(InactivityThresholdDays, func(days int) string {
			return fmt.Sprintf("Bạn đã nghỉ tập %d ngày. Một buổi nhẹ nhàng hôm nay nhé?", days)
		}),
		"mindset_002": OnBirthday(func(s Subject) ActionPayload {
			return ActionPayload{
				Title:       "🎂 Sinh nhật vui vẻ, " + s.Name + "!",
				Message:     "Chúc bạn một tuổi mới khỏe mạnh. Quà của bạn: 1 buổi PT miễn phí.",
				Icon:        "gift",
				Priority:    PriorityHigh,
				ActionLabel: "Nhận quà",
				TTL:         24 * time.Hour,
			}
		}),
		"mindset_003": OnAnniversary(func(s Subject, years int) ActionPayload {
			return ActionPayload{
				Title:    "🏅 Kỷ niệm gia nhập",
				Message:  fmt.Sprintf("%s đã gắn bó với phòng tập %d năm. Cảm ơn bạn!", s.Name, years),
				Icon:     "award",
				Priority: PriorityMedium,
				TTL:      24 * time.Hour,
			}
		}),
	}
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlansYAML decodes and validates a plan catalog.
func LoadPlansYAML(data []byte) ([]Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("plans: catalog is empty")
	}
	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("plans: decode catalog: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plans: catalog declares no plans")
	}
	seen := make(map[string]struct{}, len(file.Plans))
	for _, p := range file.Plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("plans: duplicate plan id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return file.Plans, nil
}

// LoadPlansFile reads a YAML plan catalog from disk.
func LoadPlansFile(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plans: read %s: %w", path, err)
	}
	plans, err := LoadPlansYAML(data)
	if err != nil {
		return nil, fmt.Errorf("plans: %s: %w", path, err)
	}
	return plans, nil
}

// EncodePlansYAML renders plans in the catalog format LoadPlansYAML reads.
// Runtime counters are not part of the catalog.
func EncodePlansYAML(plans []Plan) ([]byte, error) {
	data, err := yaml.Marshal(planFile{Plans: plans})
	if err != nil {
		return nil, fmt.Errorf("plans: encode catalog: %w", err)
	}
	return data, nil
}
