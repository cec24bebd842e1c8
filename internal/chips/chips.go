// Package chips provides the small set of built-in chip Providers shipped
// with ReasonChip itself: string utilities and assertion helpers used by
// example pipelines, `run-local`, and the integration test suite. Real
// deployments register their own domain Providers alongside these through
// the same chipreg.Provider interface (spec §4.2).
package chips

import (
	"context"
	"strings"

	"github.com/reasonchip/reasonchip/internal/chipreg"
)

// StripProvider exposes string-manipulation chips under the "strip"
// module prefix (so a bare `upper` falls back to `strip.upper`, and the
// fully-qualified `strip.upper` form used throughout the spec's seed
// tests resolves directly).
type StripProvider struct{}

func (StripProvider) ModulePrefix() string { return "strip" }

func (StripProvider) Chips() []chipreg.ChipDef {
	return []chipreg.ChipDef{
		{
			Name:          "upper",
			Handler:       upperHandler,
			RequestSchema: chipreg.Schema{Fields: map[string]chipreg.FieldSpec{"s": {Required: true}}},
		},
		{
			Name:          "lower",
			Handler:       lowerHandler,
			RequestSchema: chipreg.Schema{Fields: map[string]chipreg.FieldSpec{"s": {Required: true}}},
		},
	}
}

func upperHandler(_ context.Context, params map[string]any) (map[string]any, error) {
	s, _ := params["s"].(string)
	return map[string]any{"s": strings.ToUpper(s)}, nil
}

func lowerHandler(_ context.Context, params map[string]any) (map[string]any, error) {
	s, _ := params["s"].(string)
	return map[string]any{"s": strings.ToLower(s)}, nil
}

// AssertsProvider exposes chips used to exercise failure paths in example
// pipelines and tests: "asserts.fail" always fails, capturing its own
// error per spec §7's "runtime errors inside a chip handler are captured
// by the handler itself" policy rather than panicking.
type AssertsProvider struct{}

func (AssertsProvider) ModulePrefix() string { return "asserts" }

func (AssertsProvider) Chips() []chipreg.ChipDef {
	return []chipreg.ChipDef{
		{Name: "fail", Handler: failHandler},
	}
}

func failHandler(_ context.Context, params map[string]any) (map[string]any, error) {
	reason, _ := params["reason"].(string)
	if reason == "" {
		reason = "asserts.fail invoked"
	}
	return map[string]any{"status": "error", "error": reason}, nil
}

// BuiltinProviders returns every chip Provider ReasonChip ships out of the
// box, for Discover-ing into a fresh Registry.
func BuiltinProviders() []chipreg.Provider {
	return []chipreg.Provider{StripProvider{}, AssertsProvider{}}
}
