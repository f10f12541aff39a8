package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hamster/internal/candidate"
	"hamster/internal/gesture"
)

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// formatPage renders a candidate page as "1. 你好 nǐ hǎo" lines numbered
// from the page start.
func formatPage(p candidate.Page) string {
	var sb strings.Builder
	for _, it := range p.Items {
		fmt.Fprintf(&sb, "%3d. %s", it.Index+1, it.Text)
		if it.Subtitle != "" {
			fmt.Fprintf(&sb, "  %s", it.Subtitle)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// parsePoint parses "x,y".
func parsePoint(s string) (gesture.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return gesture.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return gesture.Point{X: x, Y: y}, nil
}
