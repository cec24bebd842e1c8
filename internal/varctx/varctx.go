// Package varctx implements the Variable Context: a tree of named values
// addressed by dotted paths, with deep-merge update and copy-on-scope
// semantics (spec §3, §4.3).
package varctx

import (
	"strconv"
	"strings"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// ErrNotFound is returned by Get when a path does not resolve to a value.
var ErrNotFound = rcerrors.New(rcerrors.KindUnknownVariable, "path not found")

// Context is a mutable tree of values: maps, slices, and scalars. Construct
// one with New; the zero value has a nil root map and cannot be written to.
type Context struct {
	root map[string]any
}

// New constructs a Context seeded with the given top-level values. The map
// is copied so later mutation of seed doesn't leak into the Context (or
// vice versa).
func New(seed map[string]any) *Context {
	c := &Context{root: make(map[string]any)}
	for k, v := range seed {
		c.root[k] = deepCopy(v)
	}
	return c
}

// Root returns a deep copy of the entire tree, safe for the caller to
// mutate freely.
func (c *Context) Root() map[string]any {
	return deepCopy(c.root).(map[string]any)
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get resolves a dotted path, descending through maps (string keys) and
// slices (integer segments). Returns ErrNotFound if any segment is absent
// or type-incompatible.
func (c *Context) Get(path string) (any, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return c.Root(), nil
	}
	var cur any = c.root
	for _, seg := range segs {
		next, ok := descend(cur, seg)
		if !ok {
			return nil, rcerrors.Wrap(rcerrors.KindUnknownVariable, ErrNotFound, "path %q not found at segment %q", path, seg)
		}
		cur = next
	}
	return deepCopy(cur), nil
}

func descend(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// Set assigns value at path, creating intermediate maps as needed. Sequence
// indexing by an integer path segment is only legal against an existing
// sequence of sufficient length (spec §4.3).
func (c *Context) Set(path string, value any) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		m, ok := value.(map[string]any)
		if !ok {
			return rcerrors.New(rcerrors.KindTypeMismatch, "root assignment requires a mapping")
		}
		c.root = deepCopy(m).(map[string]any)
		return nil
	}
	return setIn(&anyBox{v: c.root}, segs, deepCopy(value))
}

// anyBox lets setIn replace the root map pointer when needed (root is
// always a map in this implementation, so the indirection is unused at
// depth 0 but kept uniform with deeper levels).
type anyBox struct{ v any }

func setIn(box *anyBox, segs []string, value any) error {
	seg := segs[0]
	last := len(segs) == 1

	switch container := box.v.(type) {
	case map[string]any:
		if last {
			container[seg] = value
			return nil
		}
		child, exists := container[seg]
		if !exists {
			child = map[string]any{}
			container[seg] = child
		}
		childBox := &anyBox{v: child}
		if err := setIn(childBox, segs[1:], value); err != nil {
			return err
		}
		container[seg] = childBox.v
		return nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(container) {
			return rcerrors.New(rcerrors.KindTypeMismatch, "sequence index %q out of range", seg)
		}
		if last {
			container[idx] = value
			return nil
		}
		childBox := &anyBox{v: container[idx]}
		if err := setIn(childBox, segs[1:], value); err != nil {
			return err
		}
		container[idx] = childBox.v
		return nil
	default:
		return rcerrors.New(rcerrors.KindTypeMismatch, "cannot descend into non-container at %q", seg)
	}
}

// Append appends value to the sequence at path. The path must resolve to an
// existing sequence, or be entirely unset (in which case a new one-element
// sequence is created); any other existing value is a TypeMismatch (spec
// §4.3, §4.4 invariant (d)).
func (c *Context) Append(path string, value any) error {
	existing, err := c.Get(path)
	if err != nil {
		return c.Set(path, []any{deepCopy(value)})
	}
	seq, ok := existing.([]any)
	if !ok {
		return rcerrors.New(rcerrors.KindTypeMismatch, "append_result_into target %q is not a sequence", path)
	}
	seq = append(seq, deepCopy(value))
	return c.Set(path, seq)
}

// Merge deep-overlays other onto c: maps merge key-by-key recursively,
// sequences and scalars replace wholesale at the point of conflict (spec
// §3, §4.3).
func (c *Context) Merge(other map[string]any) {
	c.root = mergeMaps(c.root, other).(map[string]any)
}

func mergeMaps(dst map[string]any, src map[string]any) any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = deepCopy(v)
	}
	for k, v := range src {
		if existing, ok := out[k]; ok {
			if em, eok := existing.(map[string]any); eok {
				if sm, sok := v.(map[string]any); sok {
					out[k] = mergeMaps(em, sm)
					continue
				}
			}
		}
		out[k] = deepCopy(v)
	}
	return out
}

// Child returns an independent copy whose mutations never leak back to c
// (spec §3 "copy-on-scope").
func (c *Context) Child() *Context {
	return &Context{root: deepCopy(c.root).(map[string]any)}
}

// ChildWith returns a Child() with overlay merged on top — the common
// "effective scope for this task" operation (spec §4.4 step 2).
func (c *Context) ChildWith(overlay map[string]any) *Context {
	child := c.Child()
	child.Merge(overlay)
	return child
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
