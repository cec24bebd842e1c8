// Package config implements the narrow INI-style config file spec.md §6
// allows: "[only] values substituted into config files (shell-style
// ${VAR} in INI values)". It is not a general configuration system — the
// CLI surface is flags (spec §6); this only resolves `--config` defaults
// for flags the user didn't set explicitly.
package config

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// File is a parsed INI document: section name (empty string for keys
// before any [section] header) to key to resolved value.
type File map[string]map[string]string

// Load reads and parses path, resolving every value's ${VAR} / ${VAR:default}
// references against the process environment (spec §6 "Environment
// variables").
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfig, err, "opening config file %s", path)
	}
	defer f.Close()

	doc := File{}
	section := ""
	doc[section] = map[string]string{}

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, ";") || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			section = strings.TrimSpace(text[1 : len(text)-1])
			if _, ok := doc[section]; !ok {
				doc[section] = map[string]string{}
			}
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, rcerrors.New(rcerrors.KindConfig, "%s:%d: expected key=value, got %q", path, line, text)
		}
		doc[section][strings.TrimSpace(key)] = resolveEnvVar(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfig, err, "reading config file %s", path)
	}
	return doc, nil
}

// Get returns the value of section/key, resolved at Load time.
func (f File) Get(section, key string) (string, bool) {
	s, ok := f[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	return v, ok
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}`)

// resolveEnvVar substitutes every ${VAR} or ${VAR:default} occurrence in
// value against the process environment. An unset variable with no
// default is left as an empty string rather than panicking, since a
// config-file typo here must not crash a long-running broker or worker.
func resolveEnvVar(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, defaultPart := groups[1], groups[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if defaultPart != "" {
			return strings.TrimPrefix(defaultPart, ":")
		}
		return ""
	})
}

