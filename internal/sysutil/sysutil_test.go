package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"panic":   zerolog.PanicLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("SetLogLevel(%q) -> %v; want %v", in, got, want)
		}
	}
	SetLogLevel("info") // restore
}

func TestIsTruthy(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"YES":   true,
		" on ":  true,
		"y":     true,
		"0":     false,
		"false": false,
		"":      false,
		"nope":  false,
	}
	for in, want := range cases {
		if got := IsTruthy(in); got != want {
			t.Errorf("IsTruthy(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	// Both shapes must produce a usable logger; output formatting is
	// zerolog's concern, not ours.
	for _, pretty := range []bool{true, false} {
		log := NewLogger(pretty)
		log.Debug().Msg("probe")
	}
}
