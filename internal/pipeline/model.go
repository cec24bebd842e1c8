// Package pipeline implements the Pipeline Model and Loader contract (spec
// §3 "Pipeline"/"Task", §6 "Pipeline document format", §9 "Dynamic task
// discrimination"): a tagged variant Task parsed from YAML, and an
// immutable, ordered Pipeline.
package pipeline

// Kind discriminates a Task node. Exactly one kind-key is present in the
// YAML mapping that produced the Task (spec §3, §9).
type Kind string

const (
	KindTaskSet   Kind = "tasks"
	KindDispatch  Kind = "dispatch"
	KindBranch    Kind = "branch"
	KindChip      Kind = "chip"
	KindCode      Kind = "code"
	KindAssert    Kind = "assert"
	KindReturn    Kind = "return"
	KindDeclare   Kind = "declare"
	KindComment   Kind = "comment"
	KindTerminate Kind = "terminate"
)

// KeyResultInto names a mapping path and a fixed key under which a task's
// result is stored (spec §4.4 result-binding rules).
type KeyResultInto struct {
	Path string `yaml:"path"`
	Key  string `yaml:"key"`
}

// Task is the tagged variant node described by spec §3/§6. Only the fields
// relevant to Kind are populated by the loader; the rest are left at their
// zero value.
type Task struct {
	Kind Kind

	// Common optional attributes (spec §3).
	Name             string
	Comment          string
	When             string
	Loop             any
	Log              string
	RunAsync         bool
	StoreResultAs    string
	AppendResultInto string
	KeyResultInto    *KeyResultInto
	ReturnResult     bool
	Variables        map[string]any
	Params           map[string]any

	// Kind-specific payloads.
	TaskSet   []*Task  // KindTaskSet
	Dispatch  string   // KindDispatch: target pipeline name
	Branch    string   // KindBranch: target pipeline name
	Chip      string   // KindChip: dotted chip name
	Code      string   // KindCode: inline code body
	Assert    []string // KindAssert: one or more expressions
	Return    any      // KindReturn: value to interpolate and return
	Declare   map[string]any
	Terminate any // KindTerminate: value to interpolate and propagate
}

// HasResultSink reports whether any of the four result-binding sinks (spec
// §4.4 step 5) is configured on t.
func (t *Task) HasResultSink() bool {
	return t.StoreResultAs != "" || t.AppendResultInto != "" || t.KeyResultInto != nil || t.ReturnResult
}

// DisplayName returns t.Name, or a positional placeholder when unnamed, for
// error messages (spec §4.4 failure semantics: "task name (or index if
// unnamed)").
func (t *Task) DisplayName(index int) string {
	if t.Name != "" {
		return t.Name
	}
	return indexName(index)
}

func indexName(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "#0"
	}
	var buf []byte
	n := i
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "#" + string(buf)
}

// Pipeline is an ordered, named, immutable list of tasks.
type Pipeline struct {
	Name  string
	Tasks []*Task
}

// Collection maps a dotted pipeline name to its Pipeline (spec §3 "Pipeline
// Collection").
type Collection map[string]*Pipeline

// Resolver resolves a pipeline by name, the indirection the Processor uses
// for dispatch/branch without holding the Engine directly (spec §4.4).
type Resolver func(name string) (*Pipeline, bool)

// Resolve adapts a Collection to a Resolver.
func (c Collection) Resolve(name string) (*Pipeline, bool) {
	p, ok := c[name]
	return p, ok
}
