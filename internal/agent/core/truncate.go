package core

import "fmt"

// truncateWithMarker caps s at max characters and appends an explicit marker
// so the model can see content was dropped rather than silently losing it.
// label names what was cut, e.g. "Context" or "Tool result".
func truncateWithMarker(s, label string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s\n\n[%s truncated - showing first %d characters of %d total]", s[:max], label, max, len(s))
}
