package infrastructure

import (
	"fmt"
	"math"
	"strconv"
)

// formatDuration renders seconds as HH:MM:SS. Fractions are dropped, hours are not wrapped.
func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return ""
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// formatViews renders a count with thousands separators, empty for zero
func formatViews(n int64) string {
	if n <= 0 {
		return ""
	}
	digits := strconv.FormatInt(n, 10)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return string(out)
}

// formatSize renders bytes as whole megabytes, empty when unknown
func formatSize(bytes float64) string {
	if bytes <= 0 {
		return ""
	}
	return fmt.Sprintf("%dMB", int64(math.Round(bytes/1024/1024)))
}

// firstNonEmpty returns the first non-empty value, or "" if there is none
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
