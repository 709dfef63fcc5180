package session

import (
	"strings"
	"testing"

	"github.com/quizora/exam-agent/internal/model"
)

func TestIntegrityCounters(t *testing.T) {
	tests := []struct {
		name         string
		events       []EventType
		wantSuppress bool
		wantCount    int
		check        func(m *integrityMonitor) int
	}{
		{
			name:         "tab switches counted but not suppressed",
			events:       []EventType{EventTabSwitch, EventTabSwitch},
			wantSuppress: false,
			wantCount:    2,
			check:        func(m *integrityMonitor) int { return m.counts.TabSwitches },
		},
		{
			name:         "copy and cut share one counter",
			events:       []EventType{EventCopy, EventCut},
			wantSuppress: true,
			wantCount:    2,
			check:        func(m *integrityMonitor) int { return m.counts.CopyAttempts },
		},
		{
			name:         "paste suppressed and counted",
			events:       []EventType{EventPaste},
			wantSuppress: true,
			wantCount:    1,
			check:        func(m *integrityMonitor) int { return m.counts.PasteAttempts },
		},
		{
			name:         "right click suppressed and counted",
			events:       []EventType{EventRightClick},
			wantSuppress: true,
			wantCount:    1,
			check:        func(m *integrityMonitor) int { return m.counts.RightClickAttempts },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newIntegrityMonitor(3)
			var last Verdict
			for _, e := range tt.events {
				last = m.observe(IntegrityEvent{Type: e})
			}
			if last.Suppress != tt.wantSuppress {
				t.Errorf("Suppress = %v, want %v", last.Suppress, tt.wantSuppress)
			}
			if !last.Counted {
				t.Error("Counted = false, want true")
			}
			if got := tt.check(m); got != tt.wantCount {
				t.Errorf("counter = %d, want %d", got, tt.wantCount)
			}
			if last.Warning == "" {
				t.Error("expected a warning message")
			}
		})
	}
}

func TestIntegrityTabSwitchEscalatesOnce(t *testing.T) {
	m := newIntegrityMonitor(3)

	for i := 1; i <= 2; i++ {
		if v := m.observe(IntegrityEvent{Type: EventTabSwitch}); v.ForceSubmit {
			t.Fatalf("ForceSubmit at switch %d, limit is 3", i)
		}
	}
	if v := m.observe(IntegrityEvent{Type: EventTabSwitch}); !v.ForceSubmit {
		t.Fatal("third tab switch did not force submission")
	}
	// Further switches keep counting but never re-escalate.
	v := m.observe(IntegrityEvent{Type: EventTabSwitch})
	if v.ForceSubmit {
		t.Error("fourth tab switch escalated again")
	}
	if v.Count != 4 {
		t.Errorf("Count = %d, want 4", v.Count)
	}
}

func TestBlockedCombos(t *testing.T) {
	tests := []struct {
		name    string
		ev      IntegrityEvent
		blocked bool
	}{
		{"f12", IntegrityEvent{Key: "F12"}, true},
		{"ctrl+c", IntegrityEvent{Key: "c", Ctrl: true}, true},
		{"ctrl+v", IntegrityEvent{Key: "v", Ctrl: true}, true},
		{"ctrl+a", IntegrityEvent{Key: "a", Ctrl: true}, true},
		{"ctrl+s", IntegrityEvent{Key: "S", Ctrl: true}, true},
		{"ctrl+p", IntegrityEvent{Key: "p", Ctrl: true}, true},
		{"ctrl+u", IntegrityEvent{Key: "u", Ctrl: true}, true},
		{"ctrl+x", IntegrityEvent{Key: "x", Ctrl: true}, true},
		{"ctrl+shift+i", IntegrityEvent{Key: "I", Ctrl: true, Shift: true}, true},
		{"ctrl+shift+c", IntegrityEvent{Key: "c", Ctrl: true, Shift: true}, true},
		{"alt+tab", IntegrityEvent{Key: "Tab", Alt: true}, true},
		{"plain typing", IntegrityEvent{Key: "a"}, false},
		{"ctrl+z allowed", IntegrityEvent{Key: "z", Ctrl: true}, false},
		{"ctrl+shift+z allowed", IntegrityEvent{Key: "z", Ctrl: true, Shift: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.Type = EventKeyCombo
			if got := blockedCombo(tt.ev); got != tt.blocked {
				t.Errorf("blockedCombo = %v, want %v", got, tt.blocked)
			}
		})
	}
}

func TestBlockedComboSuppressedNotCounted(t *testing.T) {
	m := newIntegrityMonitor(3)
	v := m.observe(IntegrityEvent{Type: EventKeyCombo, Key: "c", Ctrl: true})

	if !v.Suppress {
		t.Error("blocked combo not suppressed")
	}
	if v.Counted {
		t.Error("blocked combo was counted as a violation")
	}
	if !strings.Contains(v.Warning, "disabled") {
		t.Errorf("warning = %q", v.Warning)
	}
	if m.counts.CopyAttempts != 0 {
		t.Errorf("CopyAttempts = %d after blocked combo, want 0", m.counts.CopyAttempts)
	}
}

func TestWindowFocusEventsIgnored(t *testing.T) {
	m := newIntegrityMonitor(3)
	for _, e := range []EventType{EventWindowBlur, EventWindowFocus} {
		if v := m.observe(IntegrityEvent{Type: e}); v != (Verdict{}) {
			t.Errorf("observe(%s) = %+v, want zero verdict", e, v)
		}
	}
	if m.snapshot() != (model.IntegrityLog{}) {
		t.Errorf("counters moved: %+v", m.snapshot())
	}
}
