package session

import (
	"fmt"
	"sort"
)

// countdown is the pure timer state: remaining seconds plus the one-shot
// warning marks. Ticking is driven externally so it can be tested
// without a real clock.
type countdown struct {
	remaining int
	marks     []int
	fired     map[int]bool
}

type tickResult struct {
	remaining int
	warnings  []int
	expired   bool
}

// newCountdown builds a countdown from the session duration and the
// configured warning marks. A mark the session already starts at or
// below never fires: warnings are not retroactive.
func newCountdown(durationSeconds int, marks []int) *countdown {
	c := &countdown{
		remaining: durationSeconds,
		marks:     append([]int(nil), marks...),
		fired:     make(map[int]bool, len(marks)),
	}
	sort.Sort(sort.Reverse(sort.IntSlice(c.marks)))
	for _, m := range c.marks {
		if m >= durationSeconds {
			c.fired[m] = true
		}
	}
	return c
}

// tick advances the clock by one second. Each warning mark fires exactly
// once, even when ticks are processed in a burst that skips past the
// exact value.
func (c *countdown) tick() tickResult {
	if c.remaining <= 0 {
		return tickResult{remaining: 0, expired: true}
	}
	c.remaining--

	var warnings []int
	for _, m := range c.marks {
		if c.remaining <= m && !c.fired[m] {
			c.fired[m] = true
			warnings = append(warnings, m)
		}
	}
	return tickResult{
		remaining: c.remaining,
		warnings:  warnings,
		expired:   c.remaining <= 0,
	}
}

// formatMark renders a warning mark the way students expect to read it.
func formatMark(seconds int) string {
	if seconds >= 60 && seconds%60 == 0 {
		mins := seconds / 60
		if mins == 1 {
			return "1 minute remaining!"
		}
		return fmt.Sprintf("%d minutes remaining!", mins)
	}
	return fmt.Sprintf("%d seconds remaining!", seconds)
}
