package pipeline

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// rawTask is the YAML shadow of Task: every field yaml.v3 can decode
// directly, before kind discrimination collapses it into a Task.
type rawTask struct {
	Name             string         `yaml:"name"`
	Comment          *string        `yaml:"comment"`
	When             string         `yaml:"when"`
	Loop             yaml.Node      `yaml:"loop"`
	Log              string         `yaml:"log"`
	RunAsync         bool           `yaml:"run_async"`
	StoreResultAs    string         `yaml:"store_result_as"`
	AppendResultInto string         `yaml:"append_result_into"`
	KeyResultInto    *KeyResultInto `yaml:"key_result_into"`
	ReturnResult     bool           `yaml:"return_result"`
	Variables        map[string]any `yaml:"variables"`
	Params           map[string]any `yaml:"params"`

	Tasks     []*Task        `yaml:"tasks"`
	Dispatch  *string        `yaml:"dispatch"`
	Branch    *string        `yaml:"branch"`
	Chip      *string        `yaml:"chip"`
	Code      *string        `yaml:"code"`
	Assert    yaml.Node      `yaml:"assert"`
	Return    yaml.Node      `yaml:"return"`
	Declare   map[string]any `yaml:"declare"`
	Terminate yaml.Node      `yaml:"terminate"`
}

// UnmarshalYAML discriminates the task kind from which of the ten kind-keys
// is present in the mapping node, and rejects zero or multiple of them
// (spec §9 "Dynamic task discrimination"). "comment" is exempt from the
// mutual-exclusion count: it doubles as a documentation attribute available
// on every other kind, and only becomes the kind itself when no other
// kind-key is present.
func (t *Task) UnmarshalYAML(node *yaml.Node) error {
	var raw rawTask
	if err := node.Decode(&raw); err != nil {
		return err
	}

	type candidate struct {
		kind    Kind
		present bool
	}
	candidates := []candidate{
		{KindTaskSet, raw.Tasks != nil},
		{KindDispatch, raw.Dispatch != nil},
		{KindBranch, raw.Branch != nil},
		{KindChip, raw.Chip != nil},
		{KindCode, raw.Code != nil},
		{KindAssert, raw.Assert.Kind != 0},
		{KindReturn, raw.Return.Kind != 0},
		{KindDeclare, raw.Declare != nil},
		{KindTerminate, raw.Terminate.Kind != 0},
	}

	var present []Kind
	for _, c := range candidates {
		if c.present {
			present = append(present, c.kind)
		}
	}

	switch {
	case len(present) == 0 && raw.Comment != nil:
		t.Kind = KindComment
	case len(present) == 0:
		return rcerrors.New(rcerrors.KindValidation,
			"task %q has no kind key (expected one of tasks/dispatch/branch/chip/code/assert/return/declare/comment/terminate)",
			displayNameFor(raw.Name))
	case len(present) > 1:
		names := make([]string, len(present))
		for i, k := range present {
			names[i] = string(k)
		}
		return rcerrors.New(rcerrors.KindValidation,
			"task %q has multiple kind keys: %s", displayNameFor(raw.Name), strings.Join(names, ", "))
	default:
		t.Kind = present[0]
	}

	t.Name = raw.Name
	if raw.Comment != nil {
		t.Comment = *raw.Comment
	}
	t.When = raw.When
	if raw.Loop.Kind != 0 {
		if err := raw.Loop.Decode(&t.Loop); err != nil {
			return err
		}
	}
	t.Log = raw.Log
	t.RunAsync = raw.RunAsync
	t.StoreResultAs = raw.StoreResultAs
	t.AppendResultInto = raw.AppendResultInto
	t.KeyResultInto = raw.KeyResultInto
	t.ReturnResult = raw.ReturnResult
	t.Variables = raw.Variables
	t.Params = raw.Params

	switch t.Kind {
	case KindTaskSet:
		t.TaskSet = raw.Tasks
	case KindDispatch:
		t.Dispatch = *raw.Dispatch
	case KindBranch:
		t.Branch = *raw.Branch
	case KindChip:
		t.Chip = *raw.Chip
	case KindCode:
		t.Code = *raw.Code
	case KindAssert:
		exprs, err := decodeStringOrSlice(&raw.Assert)
		if err != nil {
			return fmt.Errorf("assert: %w", err)
		}
		t.Assert = exprs
	case KindReturn:
		if err := raw.Return.Decode(&t.Return); err != nil {
			return err
		}
	case KindDeclare:
		t.Declare = raw.Declare
	case KindTerminate:
		if err := raw.Terminate.Decode(&t.Terminate); err != nil {
			return err
		}
	case KindComment:
		// no payload; t.Comment already carries the note.
	}

	return nil
}

func decodeStringOrSlice(node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var ss []string
	if err := node.Decode(&ss); err != nil {
		return nil, err
	}
	return ss, nil
}

func displayNameFor(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// LoadFile decodes a single pipeline document: a YAML sequence of task
// nodes (spec §6 "Pipeline document format").
func LoadFile(data []byte) (*Pipeline, error) {
	var tasks []*Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindParse, err, "decoding pipeline document")
	}
	return &Pipeline{Tasks: tasks}, nil
}

// LoadDir walks fsys rooted at root, loading every ".yml"/".yaml" file into
// a Collection keyed by its dotted pipeline name (spec §6: a file at
// "chatbot/app/entry.yml" under collection root "chatbot" is named
// "chatbot.app.entry").
func LoadDir(fsys fs.FS, root, collectionName string) (Collection, error) {
	col := make(Collection)

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := path.Ext(p)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return rcerrors.Wrap(rcerrors.KindParse, err, "reading %s", p)
		}
		pl, err := LoadFile(data)
		if err != nil {
			return rcerrors.Wrap(rcerrors.KindParse, err, "loading %s", p)
		}

		name := pipelineName(collectionName, root, p)
		pl.Name = name
		if _, dup := col[name]; dup {
			return rcerrors.New(rcerrors.KindValidation, "duplicate pipeline name %q from %s", name, p)
		}
		col[name] = pl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// pipelineName derives a dotted pipeline name from a file path relative to
// its collection root, stripping the extension and replacing path
// separators with dots, prefixed by the collection's own name.
func pipelineName(collectionName, root, filePath string) string {
	rel := strings.TrimPrefix(filePath, root)
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	parts := strings.Split(rel, "/")
	if collectionName != "" {
		parts = append([]string{collectionName}, parts...)
	}
	return strings.Join(parts, ".")
}

// MergeCollections combines multiple named collections into one Collection,
// erroring on a pipeline name collision across collections (spec §6
// "--collection name=path", repeatable).
func MergeCollections(cols ...Collection) (Collection, error) {
	out := make(Collection)
	for _, c := range cols {
		names := make([]string, 0, len(c))
		for n := range c {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if _, dup := out[n]; dup {
				return nil, rcerrors.New(rcerrors.KindValidation, "duplicate pipeline name %q across collections", n)
			}
			out[n] = c[n]
		}
	}
	return out, nil
}
