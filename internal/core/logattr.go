// AngelaMos | 2026
// logattr.go

package core

import (
	"log/slog"
)

// Attribute helpers keep log keys consistent across packages.

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

func Plan(id string) slog.Attr {
	return slog.String("plan", id)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
