package main

import (
	"os"
	"strings"

	"github.com/reasonchip/reasonchip/internal/engine"
)

// collectionFlags accumulates repeated `--collection name=path` flags.
type collectionFlags []string

func (c *collectionFlags) String() string { return strings.Join(*c, ",") }

func (c *collectionFlags) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func (c *collectionFlags) Type() string { return "name=path" }

// sources parses every accumulated "name=path" pair into a CollectionSource
// rooted at the local filesystem (spec §6 "--collection name=path").
func (c collectionFlags) sources() ([]engine.CollectionSource, error) {
	out := make([]engine.CollectionSource, 0, len(c))
	for _, raw := range c {
		name, path, ok := strings.Cut(raw, "=")
		if !ok || name == "" || path == "" {
			return nil, invalidArgs("invalid --collection value %q, want name=path", raw)
		}
		out = append(out, engine.CollectionSource{Name: name, FS: os.DirFS(path), Root: "."})
	}
	return out, nil
}
