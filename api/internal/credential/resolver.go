// Package credential locates the Gemini API key from an ordered list of sources.
package credential

import (
	"os"
	"strings"
)

// Build-time surface, injected with
//
//	go build -ldflags "-X face-match/api/internal/credential.viteGeminiAPIKey=..."
var (
	viteGeminiAPIKey string
	geminiAPIKey     string
	viteAPIKey       string
)

// Source is one named place a credential may come from.
type Source struct {
	Name   string // e.g. "build:GEMINI_API_KEY"
	Lookup func() string
}

// Found is a resolved credential together with where it came from.
type Found struct {
	Value  string
	Source string
}

// Resolver tries its sources in order. It keeps no state between calls.
type Resolver struct {
	sources []Source
}

func New(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Default returns the production chain: build-time names first, then the
// process environment.
func Default() *Resolver {
	build := map[string]string{
		"VITE_GEMINI_API_KEY": viteGeminiAPIKey,
		"GEMINI_API_KEY":      geminiAPIKey,
		"VITE_API_KEY":        viteAPIKey,
	}
	return New(Chain(
		MapSources("build", build, "VITE_GEMINI_API_KEY", "GEMINI_API_KEY", "VITE_API_KEY"),
		EnvSources(os.Getenv, "VITE_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"),
	)...)
}

// Resolve returns the first non-empty value, trimmed.
func (r *Resolver) Resolve() (Found, bool) {
	for _, s := range r.sources {
		if s.Lookup == nil {
			continue
		}
		if v := strings.TrimSpace(s.Lookup()); v != "" {
			return Found{Value: v, Source: s.Name}, true
		}
	}
	return Found{}, false
}

// Sources lists source names in priority order.
func (r *Resolver) Sources() []string {
	out := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Name)
	}
	return out
}

// EnvSources builds one source per variable name using getenv.
func EnvSources(getenv func(string) string, names ...string) []Source {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		n := n
		out = append(out, Source{Name: "env:" + n, Lookup: func() string { return getenv(n) }})
	}
	return out
}

// MapSources builds sources over a fixed map, e.g. values linked in at build time.
func MapSources(prefix string, values map[string]string, names ...string) []Source {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		v := values[n]
		out = append(out, Source{Name: prefix + ":" + n, Lookup: func() string { return v }})
	}
	return out
}

func Chain(groups ...[]Source) []Source {
	var out []Source
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Prefix is the only part of a credential that may be logged.
func Prefix(v string) string {
	const n = 4
	if len(v) <= n {
		return strings.Repeat("*", len(v))
	}
	return v[:n] + "..."
}
