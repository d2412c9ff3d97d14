package maint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// HooksConfigName is the hook pipeline configuration file at the
// repository root.
const HooksConfigName = ".strata-hooks.yaml"

// HooksConfig is the hook pipeline configuration. Hooks run in file
// order, repository by repository.
type HooksConfig struct {
	// Exclude is a path pattern removing files from every hook.
	Exclude string `yaml:"exclude,omitempty"`

	// Repos are the hook repositories in execution order.
	Repos []HookRepo `yaml:"repos"`
}

// HookRepo is one hook repository pinned at a revision.
type HookRepo struct {
	Repo  string `yaml:"repo"`
	Rev   string `yaml:"rev"`
	Hooks []Hook `yaml:"hooks"`
}

// Hook enables one tool from its repository.
type Hook struct {
	ID string `yaml:"id"`

	// Entry overrides the command the hook runs. Defaults to the
	// known entry for ID.
	Entry string `yaml:"entry,omitempty"`

	// Exclude removes matching files from this hook only.
	Exclude string `yaml:"exclude,omitempty"`

	// Files keeps only matching files. Defaults to the known pattern
	// for ID, if any.
	Files string `yaml:"files,omitempty"`

	// Args are extra command arguments placed before the file list.
	Args []string `yaml:"args,omitempty"`

	// Types keeps only files of the listed types; a file must match
	// all of them. Defaults to the known types for ID.
	Types []string `yaml:"types,omitempty"`

	// AdditionalDependencies are extra dependency pins for the tool.
	// They are recorded and exported to the hook environment, never
	// installed by the pipeline.
	AdditionalDependencies []string `yaml:"additional_dependencies,omitempty"`
}

// LoadHooksConfig reads the hook configuration under root. Unknown
// fields are rejected.
func LoadHooksConfig(root string) (*HooksConfig, error) {
	f, err := os.Open(filepath.Join(root, HooksConfigName))
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg HooksConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", HooksConfigName, err)
	}
	return &cfg, nil
}

// hookDefaults describes a hook id the pipeline knows how to run.
type hookDefaults struct {
	entry string
	types []string
	files string
}

// knownHooks maps hook ids to their command and default file scope.
// A hook with an id outside this table needs an explicit entry.
var knownHooks = map[string]hookDefaults{
	"end-of-file-fixer":               {entry: "end-of-file-fixer", types: []string{"text"}},
	"trailing-whitespace":             {entry: "trailing-whitespace-fixer", types: []string{"text"}},
	"check-builtin-literals":          {entry: "check-builtin-literals", types: []string{"python"}},
	"check-executables-have-shebangs": {entry: "check-executables-have-shebangs", types: []string{"text", "executable"}},
	"check-json":                      {entry: "check-json", types: []string{"json"}},
	"check-yaml":                      {entry: "check-yaml", types: []string{"yaml"}},
	"debug-statements":                {entry: "debug-statement-hook", types: []string{"python"}},
	"requirements-txt-fixer":          {entry: "requirements-txt-fixer", files: `(^|/)requirements[^/]*\.txt$`},
	"pyupgrade":                       {entry: "pyupgrade", types: []string{"python"}},
	"isort":                           {entry: "isort", types: []string{"python"}},
	"black":                           {entry: "black", types: []string{"python"}},
	"flake8":                          {entry: "flake8", types: []string{"python"}},
	"pydocstyle":                      {entry: "pydocstyle", types: []string{"python"}},
	"mypy":                            {entry: "mypy", types: []string{"python"}},
}

// Validate reports every well-formedness problem in the configuration:
// patterns that do not compile, empty revisions, duplicate or unknown
// hook ids.
func (c *HooksConfig) Validate() []error {
	var errs []error

	if c.Exclude != "" {
		if _, err := regexp.Compile(c.Exclude); err != nil {
			errs = append(errs, fmt.Errorf("global exclude: %w", err))
		}
	}
	if len(c.Repos) == 0 {
		errs = append(errs, errors.New("no hook repositories configured"))
	}

	for _, repo := range c.Repos {
		if repo.Repo == "" {
			errs = append(errs, errors.New("hook repository with empty repo URL"))
			continue
		}
		if repo.Rev == "" {
			errs = append(errs, fmt.Errorf("%s: empty rev", repo.Repo))
		}
		if len(repo.Hooks) == 0 {
			errs = append(errs, fmt.Errorf("%s: no hooks enabled", repo.Repo))
		}

		seen := make(map[string]bool, len(repo.Hooks))
		for _, hook := range repo.Hooks {
			errs = append(errs, hook.validate(repo.Repo, seen)...)
		}
	}

	return errs
}

func (h Hook) validate(repoURL string, seen map[string]bool) []error {
	var errs []error

	if h.ID == "" {
		return []error{fmt.Errorf("%s: hook with empty id", repoURL)}
	}
	if seen[h.ID] {
		errs = append(errs, fmt.Errorf("%s: duplicate hook id %q", repoURL, h.ID))
	}
	seen[h.ID] = true

	if _, known := knownHooks[h.ID]; !known && h.Entry == "" {
		errs = append(errs, fmt.Errorf("%s: unknown hook id %q and no entry", repoURL, h.ID))
	}

	for _, expr := range []string{h.Exclude, h.Files} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: hook %s: %w", repoURL, h.ID, err))
		}
	}
	for _, typ := range h.Types {
		if !knownType(typ) {
			errs = append(errs, fmt.Errorf("%s: hook %s: unknown file type %q", repoURL, h.ID, typ))
		}
	}

	return errs
}

// command returns the command line for the hook, before policy and
// file arguments.
func (h Hook) command() []string {
	entry := h.Entry
	if entry == "" {
		if def, ok := knownHooks[h.ID]; ok {
			entry = def.entry
		} else {
			entry = h.ID
		}
	}
	return append(strings.Fields(entry), h.Args...)
}

// fileScope returns the effective files pattern and type list, falling
// back to the known defaults for the hook id.
func (h Hook) fileScope() (files string, types []string) {
	def := knownHooks[h.ID]

	files = h.Files
	if files == "" {
		files = def.files
	}
	types = h.Types
	if len(types) == 0 {
		types = def.types
	}
	return files, types
}
