package core

import "testing"

func TestParseRestartPolicy(t *testing.T) {
	tests := []struct {
		input     string
		want      RestartPolicy
		wantError bool
	}{
		{"always", RestartAlways, false},
		{"on-failure", RestartOnFailure, false},
		{"never", RestartNever, false},
		{"", "", true},
		{"sometimes", "", true},
		{"ON-FAILURE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRestartPolicy(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for %q: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("policy: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventCrashed, 3, "child crashed (exit code 1)")
	if ev.Type != EventCrashed {
		t.Errorf("type: got %q, want %q", ev.Type, EventCrashed)
	}
	if ev.Attempt != 3 {
		t.Errorf("attempt: got %d, want 3", ev.Attempt)
	}
	if ev.TsUnixMs == 0 {
		t.Error("expected timestamp to be set")
	}
	if ev.Time().UnixMilli() != ev.TsUnixMs {
		t.Errorf("Time round-trip: got %d, want %d", ev.Time().UnixMilli(), ev.TsUnixMs)
	}
}
