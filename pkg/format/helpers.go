package format

import (
	"fmt"
	"time"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

// Placeholder stands in for absent optional values.
const Placeholder = "—"

// Uptime formats seconds as "Xd Yh", "Xh Ym" or "Ym".
func Uptime(seconds int64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func Percent(p float64) string {
	return fmt.Sprintf("%d%%", models.ConfidencePercent(p))
}

// ShortID returns the first eight characters of id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func Seconds(s float64) string {
	return fmt.Sprintf("%.2fs", s)
}

// OptFloat renders an optional metric with the given verb, or Placeholder.
func OptFloat(v *float64, verb string) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf(verb, *v)
}

func OrPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func Date(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format("2006-01-02 15:04")
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
