// Package rclog builds the single logging context ReasonChip processes
// construct at startup and pass down explicitly (spec §9 "Logger hook"
// design note: no process-wide logger patched after the fact). Runtime
// level changes apply to a flat namespace→level map that each logger
// consults once, when it is created, grounded in the Options/Logger split of
// the pack's alexisbeaulieu97-Streamy internal/logger package.
package rclog

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reasonchip/reasonchip/internal/telemetry"
)

// Context owns the namespace→level map and mints Loggers scoped to a
// namespace (typically a component name: "broker", "worker", "processor").
type Context struct {
	mu      sync.RWMutex
	levels  map[string]zerolog.Level
	def     zerolog.Level
	writer  io.Writer
}

// New constructs a Context writing JSON lines to w at the given default
// level. Use os.Stderr for CLI entry points.
func New(w io.Writer, defaultLevel string) *Context {
	return &Context{
		levels: make(map[string]zerolog.Level),
		def:    parseLevel(defaultLevel),
		writer: w,
	}
}

// SetLevel overrides the level for a single namespace, or the default level
// when namespace is empty. Mirrors the CLI's `--log-level [LOGGER=]LEVEL`
// flag (spec §6): a bare LEVEL sets the default, a LOGGER=LEVEL pair scopes
// to that namespace.
func (c *Context) SetLevel(namespace, level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if namespace == "" {
		c.def = parseLevel(level)
		return
	}
	c.levels[namespace] = parseLevel(level)
}

// ApplySpec parses one or more space-separated "[LOGGER=]LEVEL" tokens.
func (c *Context) ApplySpec(spec string) {
	for _, tok := range strings.Fields(spec) {
		if ns, lvl, ok := strings.Cut(tok, "="); ok {
			c.SetLevel(ns, lvl)
		} else {
			c.SetLevel("", tok)
		}
	}
}

func (c *Context) levelFor(namespace string) zerolog.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if lvl, ok := c.levels[namespace]; ok {
		return lvl
	}
	return c.def
}

// Logger mints a telemetry.Logger scoped to namespace. Each call re-reads
// the current level map, so a level change applies to every logger created
// afterward without threading a pointer through every component.
func (c *Context) Logger(namespace string) telemetry.Logger {
	base := zerolog.New(c.writer).With().Timestamp().Str("component", namespace).Logger().Level(c.levelFor(namespace))
	return telemetry.NewZerologLogger(base)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Default returns a Context writing to stderr at info level, for tests and
// run-local invocations that don't configure logging explicitly.
func Default() *Context {
	return New(os.Stderr, "info")
}

type ctxKey struct{}

// WithContext attaches c to ctx so deeply nested helpers (chip handlers)
// can retrieve a scoped logger without a parameter on every signature.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext retrieves the Context attached by WithContext, falling back
// to Default().
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(ctxKey{}).(*Context); ok {
		return c
	}
	return Default()
}
