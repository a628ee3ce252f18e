package utilities

import (
	"testing"
	"time"
)

func TestUnixMilli(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 500_000_000, time.UTC)
	if got := UnixMilli(at); got != at.UnixMilli() {
		t.Errorf("UnixMilli(%v) = %d, want %d", at, got, at.UnixMilli())
	}
	if UnixMilli(TimeNow()) <= 0 {
		t.Error("UnixMilli(TimeNow()) must be positive")
	}
}

func TestValidHandle(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   bool
	}{
		{name: "plain", handle: "alice", want: true},
		{name: "underscore and digits", handle: "bob_99", want: true},
		{name: "empty", handle: "", want: false},
		{name: "separator char", handle: "a_b-c", want: false},
		{name: "spaces", handle: "a b", want: false},
		{name: "unicode", handle: "ålice", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidHandle(tt.handle); got != tt.want {
				t.Errorf("ValidHandle(%q) = %v, want %v", tt.handle, got, tt.want)
			}
		})
	}
}
