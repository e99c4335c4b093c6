package notification

// Level is the escalation level of a project inactivity warning.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

var levelLabels = map[Level][2]string{
	LevelCritical: {"严重逾期", "Critical Overdue"},
	LevelHigh:     {"高度逾期", "High Overdue"},
	LevelMedium:   {"中度预警", "Medium Warning"},
	LevelLow:      {"轻度预警", "Low Warning"},
}

// Label returns the Chinese display label.
func (l Level) Label() string { return levelLabels[l][0] }

// LabelEN returns the English display label.
func (l Level) LabelEN() string { return levelLabels[l][1] }

// ClassifyInactivity maps days without commits and lifetime commit count to a level and importance.
func ClassifyInactivity(daysWithoutCommits, totalCommitCount int) (Level, Importance) {
	switch {
	case daysWithoutCommits >= 5:
		if totalCommitCount < 3 {
			return LevelCritical, ImportanceHigh
		}
		return LevelHigh, ImportanceHigh
	case daysWithoutCommits >= 3:
		if totalCommitCount == 0 {
			return LevelCritical, ImportanceHigh
		}
		return LevelMedium, ImportanceNormal
	default:
		return LevelLow, ImportanceNormal
	}
}

// SeverityMessage returns the closing paragraph of an inactivity warning in both languages.
func SeverityMessage(level Level, daysWithoutCommits int) (zh, en string) {
	switch {
	case level == LevelCritical:
		return "⚠️ 这是严重逾期提交预警！项目进度严重滞后，可能影响交付时间。\n\n",
			"⚠️ This is a critical overdue commit warning! Project progress is severely behind schedule.\n\n"
	case daysWithoutCommits >= 3:
		return "⚡ 项目已进入预警状态，请尽快更新代码进度。\n\n",
			"⚡ Project has entered warning status, please update code progress soon.\n\n"
	default:
		return "📝 请保持项目代码的定期更新。\n\n",
			"📝 Please maintain regular project code updates.\n\n"
	}
}
