// Package config holds the toolchain switches that the checker consults.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvDebugTyping   = "JAC_DEBUG_TYPING"
	EnvTypingAsserts = "JAC_TYPING_ASSERTS"
	EnvSemantics     = "JAC_SEMANTICS"
	EnvBuiltins      = "JAC_BUILTINS"
)

type Settings struct {
	// DebugTyping enables the pass and resolver trace logs.
	DebugTyping bool
	// TypingAsserts makes internal checker failures fatal instead of being
	// recovered per statement.
	TypingAsserts bool
	// Semantics enables the annotate and check passes at all.
	Semantics bool
	// BuiltinsPath replaces the embedded builtin definitions.
	BuiltinsPath string
}

func Default() Settings {
	return Settings{Semantics: true}
}

func envBool(name string, dst *bool) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

// FromEnv overlays the JAC_* environment variables on the defaults.
func FromEnv() (Settings, error) {
	s := Default()
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{EnvDebugTyping, &s.DebugTyping},
		{EnvTypingAsserts, &s.TypingAsserts},
		{EnvSemantics, &s.Semantics},
	} {
		if err := envBool(f.name, f.dst); err != nil {
			return s, err
		}
	}
	if v, ok := os.LookupEnv(EnvBuiltins); ok {
		s.BuiltinsPath = v
	}
	return s, nil
}
