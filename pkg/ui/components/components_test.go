package components

import (
	"strings"
	"testing"
)

func TestStatusComponent_View(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{ConnectionStatus{State: "live", Endpoint: "ws://node"}, "Live"},
		{ConnectionStatus{State: "connecting"}, "Connecting"},
		{ConnectionStatus{State: "recovering", Attempt: 3}, "Reconnecting (attempt 3)"},
		{ConnectionStatus{State: "disconnected"}, "Disconnected"},
	}

	s := NewStatusComponent()
	for _, tt := range tests {
		s.Update(tt.status)
		if got := s.View(); !strings.Contains(got, tt.want) {
			t.Errorf("state %s: view %q missing %q", tt.status.State, got, tt.want)
		}
	}
}

func TestPanel_ContainsTitleAndBody(t *testing.T) {
	for _, emphasized := range []bool{true, false} {
		out := Panel("Base fee 1.00 gwei", "Block #100", emphasized, 40)
		if !strings.Contains(out, "Block #100") || !strings.Contains(out, "Base fee 1.00 gwei") {
			t.Errorf("emphasized=%v: panel missing content:\n%s", emphasized, out)
		}
	}
}

func TestStatsComponent_View(t *testing.T) {
	s := NewStatsComponent()
	s.Update(Stats{Headers: 12, Reconnects: 1})

	out := s.View()
	for _, want := range []string{"Headers: ", "12", "Reconnects: ", "1"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q: %s", want, out)
		}
	}
}
