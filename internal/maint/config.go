package maint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigName is the maintenance configuration file at the repository
// root.
const ConfigName = ".strata-maint.toml"

// Config is the maintenance configuration parsed from ConfigName.
type Config struct {
	Release        Release         `toml:"release"`
	Lint           Lint            `toml:"lint"`
	DocStyle       DocStyle        `toml:"docstyle"`
	TypeCheck      TypeCheck       `toml:"typecheck"`
	Coverage       Coverage        `toml:"coverage"`
	WarningFilters []WarningFilter `toml:"warningfilter"`
}

// Release configures the version bump operation.
type Release struct {
	// CurrentVersion is the version the repository is at. The bump
	// operation rewrites it together with the targets.
	CurrentVersion string `toml:"current_version"`

	// Commit makes a successful bump create a git commit listing
	// exactly the patched files.
	Commit bool `toml:"commit"`

	// Tag makes a successful bump tag the release commit.
	Tag bool `toml:"tag"`

	// Targets are the files patched on bump.
	Targets []BumpTarget `toml:"target"`
}

// BumpTarget is one file patched on bump. Search and Replace are
// templates; {current_version} and {new_version} are substituted
// before use.
type BumpTarget struct {
	File    string `toml:"file"`
	Search  string `toml:"search"`
	Replace string `toml:"replace"`
}

// Lint is the style checker policy. The hook pipeline renders it as
// arguments when invoking the style checker hook.
type Lint struct {
	MaxLineLength int      `toml:"max_line_length"`
	Exclude       []string `toml:"exclude"`
	Select        []string `toml:"select"`
	Ignore        []string `toml:"ignore"`
}

// DocStyle is the doc-comment checker policy.
type DocStyle struct {
	// Match and MatchDir scope enforcement to matching files and
	// directories. They use the checker's own pattern syntax and are
	// passed through verbatim.
	Match    string `toml:"match"`
	MatchDir string `toml:"match_dir"`

	// IgnoreDecorator names a marker whose targets are exempt.
	IgnoreDecorator string `toml:"ignore_decorator"`

	// AddIgnore extends the checker's ignored diagnostic codes.
	AddIgnore []string `toml:"add_ignore"`
}

// TypeCheck is the type checker policy.
type TypeCheck struct {
	// IgnoreMissingImports keeps missing third-party stubs from being
	// reported as errors.
	IgnoreMissingImports bool `toml:"ignore_missing_imports"`
}

// Coverage is the coverage collector policy. It is recorded and
// validated here; the collector reads it at test time.
type Coverage struct {
	Branch      bool     `toml:"branch"`
	Concurrency []string `toml:"concurrency"`
	Parallel    bool     `toml:"parallel"`
	Source      []string `toml:"source"`
	Omit        []string `toml:"omit"`
}

// WarningFilter is one ordered test warning rule. Rules either
// escalate a warning category to an error for a module scope or
// exempt specific messages back to ignored.
type WarningFilter struct {
	// Action is "error" or "ignore".
	Action string `toml:"action"`

	// Category is the warning class the rule applies to.
	Category string `toml:"category"`

	// Module scopes the rule to a module pattern. Empty means any.
	Module string `toml:"module,omitempty"`

	// Message exempts warnings whose text matches this pattern.
	// Only meaningful for ignore rules.
	Message string `toml:"message,omitempty"`
}

// FilterString renders the rule in the conventional warning control
// syntax, action:message:category:module, understood by the test
// tooling the rules are exported to.
func (f WarningFilter) FilterString() string {
	return fmt.Sprintf("%s:%s:%s:%s", f.Action, f.Message, f.Category, f.Module)
}

// LoadConfig reads and parses the maintenance configuration under
// root.
func LoadConfig(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigName))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigName, err)
	}
	return &cfg, nil
}
