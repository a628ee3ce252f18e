package utilities

import (
	"time"

	"github.com/spf13/cast"
)

func ContainsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

func SliceToMap(sl []string) map[string]bool {
	m := make(map[string]bool)

	for _, each := range sl {
		m[each] = true
	}

	return m
}

func TimeNow() time.Time {
	return time.Now().UTC()
}

func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

func UnixMilliString() string {
	return cast.ToString(UnixMilli(TimeNow()))
}

// DisplayTime derives the human display string for a millisecond timestamp.
// Display only, never used for ordering.
func DisplayTime(millis int64) string {
	return time.UnixMilli(millis).UTC().Format("15:04")
}

// ValidHandle reports whether a peer handle sticks to the charset that keeps
// conversation keys collision-free: alphanumerics and underscore.
func ValidHandle(handle string) bool {
	if handle == "" {
		return false
	}
	for _, r := range handle {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
