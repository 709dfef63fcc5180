package session

import (
	"fmt"
	"strings"

	"github.com/quizora/exam-agent/internal/model"
)

// EventType enumerates the platform events the integrity monitor observes.
type EventType string

const (
	EventTabSwitch   EventType = "tab_switch"
	EventCopy        EventType = "copy"
	EventCut         EventType = "cut"
	EventPaste       EventType = "paste"
	EventRightClick  EventType = "right_click"
	EventKeyCombo    EventType = "key_combo"
	EventWindowBlur  EventType = "window_blur"
	EventWindowFocus EventType = "window_focus"
)

// IntegrityEvent is a single observed platform event. Key and the
// modifier flags are only meaningful for EventKeyCombo.
type IntegrityEvent struct {
	Type  EventType `json:"type"`
	Key   string    `json:"key,omitempty"`
	Ctrl  bool      `json:"ctrl,omitempty"`
	Shift bool      `json:"shift,omitempty"`
	Alt   bool      `json:"alt,omitempty"`
}

// Verdict tells the adapter what to do with an observed event.
type Verdict struct {
	// Suppress means the underlying action must not take effect.
	Suppress bool `json:"suppress"`
	// Counted means the event was recorded as a violation.
	Counted bool `json:"counted"`
	// Count is the running count for the event's counter when Counted.
	Count int `json:"count,omitempty"`
	// Warning is the user-visible message to show, if any.
	Warning string `json:"warning,omitempty"`
	// ForceSubmit means the violation ceiling was reached and the
	// session is about to be submitted automatically.
	ForceSubmit bool `json:"force_submit,omitempty"`
}

// integrityMonitor counts violations for one session and decides when
// to escalate. Only stealthy actions (tab switch, clipboard, right
// click) are counted; blocked keyboard shortcuts are UX friction, not
// monitored violations.
type integrityMonitor struct {
	counts    model.IntegrityLog
	limit     int
	escalated bool
}

func newIntegrityMonitor(tabSwitchLimit int) *integrityMonitor {
	return &integrityMonitor{limit: tabSwitchLimit}
}

func (m *integrityMonitor) snapshot() model.IntegrityLog { return m.counts }

// observe records one event and returns the adapter verdict. The
// tab-switch ceiling escalates exactly once per session.
func (m *integrityMonitor) observe(ev IntegrityEvent) Verdict {
	switch ev.Type {
	case EventTabSwitch:
		m.counts.TabSwitches++
		v := Verdict{
			Counted: true,
			Count:   m.counts.TabSwitches,
			Warning: fmt.Sprintf("Warning: tab switching detected! (count: %d)", m.counts.TabSwitches),
		}
		if m.counts.TabSwitches >= m.limit && !m.escalated {
			m.escalated = true
			v.ForceSubmit = true
		}
		return v

	case EventCopy, EventCut:
		m.counts.CopyAttempts++
		return Verdict{
			Suppress: true,
			Counted:  true,
			Count:    m.counts.CopyAttempts,
			Warning:  fmt.Sprintf("Copy/cut is disabled during the exam! (attempt %d)", m.counts.CopyAttempts),
		}

	case EventPaste:
		m.counts.PasteAttempts++
		return Verdict{
			Suppress: true,
			Counted:  true,
			Count:    m.counts.PasteAttempts,
			Warning:  fmt.Sprintf("Paste is disabled during the exam! (attempt %d)", m.counts.PasteAttempts),
		}

	case EventRightClick:
		m.counts.RightClickAttempts++
		return Verdict{
			Suppress: true,
			Counted:  true,
			Count:    m.counts.RightClickAttempts,
			Warning:  fmt.Sprintf("Right-click is disabled during the exam! (attempt %d)", m.counts.RightClickAttempts),
		}

	case EventKeyCombo:
		if blockedCombo(ev) {
			return Verdict{
				Suppress: true,
				Warning:  "Keyboard shortcuts are disabled during the exam!",
			}
		}
		return Verdict{}

	default:
		// Window blur/focus and anything unknown: observed, never counted.
		return Verdict{}
	}
}

// blockedCombo is the fixed blocklist of keyboard shortcuts suppressed
// during a session: select-all, copy, paste, cut, save, print, view
// source, and the developer-tool shortcuts.
func blockedCombo(ev IntegrityEvent) bool {
	key := strings.ToLower(ev.Key)

	if key == "f12" {
		return true
	}
	if ev.Ctrl && ev.Shift && (key == "i" || key == "c") {
		return true
	}
	if ev.Ctrl && !ev.Shift && !ev.Alt {
		switch key {
		case "a", "c", "v", "x", "s", "p", "u":
			return true
		}
	}
	if ev.Alt && key == "tab" {
		return true
	}
	return false
}
