package maint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// CheckResult is the outcome of one consistency check.
type CheckResult struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (r CheckResult) OK() bool {
	return r.Err == nil
}

// Check runs the maintenance consistency checks against the repository
// at root: version sync across the bump targets, referenced paths,
// warning filter well-formedness and the hook configuration.
func Check(root string, cfg *Config, hooks *HooksConfig) []CheckResult {
	return []CheckResult{
		{Name: "version sync", Err: checkVersionSync(root, cfg)},
		{Name: "referenced paths", Err: checkReferencedPaths(root, cfg)},
		{Name: "warning filters", Err: checkWarningFilters(cfg.WarningFilters)},
		{Name: "hook configuration", Err: checkHooks(hooks)},
	}
}

// checkVersionSync verifies the declared version appears in every bump
// target at its search location.
func checkVersionSync(root string, cfg *Config) error {
	version := cfg.Release.CurrentVersion
	if version == "" {
		return errors.New("release current_version is empty")
	}

	var problems []string
	for _, t := range cfg.Release.Targets {
		search := renderTemplate(t.Search, version, version)
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(t.File)))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", t.File, err))
			continue
		}
		if !strings.Contains(string(data), search) {
			problems = append(problems, fmt.Sprintf("%s: version %s not found", t.File, version))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// checkReferencedPaths verifies every plainly named path in the
// configuration resolves in the repository tree. Entries with pattern
// metacharacters are not paths and are skipped.
func checkReferencedPaths(root string, cfg *Config) error {
	var paths []string
	for _, t := range cfg.Release.Targets {
		paths = append(paths, t.File)
	}
	paths = append(paths, cfg.Lint.Exclude...)
	paths = append(paths, cfg.Coverage.Source...)
	paths = append(paths, cfg.Coverage.Omit...)

	var missing []string
	for _, p := range paths {
		if p == "" || isPattern(p) {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing paths: %s", strings.Join(missing, ", "))
	}
	return nil
}

// isPattern reports whether the entry is a glob or regexp rather than
// a literal path.
func isPattern(p string) bool {
	return strings.ContainsAny(p, `*?[]()|^$+{}\`)
}

// Filter actions understood by the test tooling.
var validFilterActions = map[string]bool{"error": true, "ignore": true}

// checkWarningFilters verifies the rules are well-formed: actions are
// known, message patterns compile, no rule repeats, and every ignore
// exemption has an error rule escalating the category it exempts.
// Whether an ignore pattern still matches a warning the test suite
// actually emits is beyond a static check.
func checkWarningFilters(filters []WarningFilter) error {
	var problems []string

	seen := make(map[WarningFilter]bool, len(filters))
	escalated := make(map[string]bool)
	for _, f := range filters {
		if f.Action == "error" {
			escalated[f.Category] = true
		}
	}

	for i, f := range filters {
		if !validFilterActions[f.Action] {
			problems = append(problems, fmt.Sprintf("rule %d: unknown action %q", i+1, f.Action))
		}
		if f.Category == "" {
			problems = append(problems, fmt.Sprintf("rule %d: empty category", i+1))
		}
		if f.Message != "" {
			if _, err := regexp.Compile(f.Message); err != nil {
				problems = append(problems, fmt.Sprintf("rule %d: message: %v", i+1, err))
			}
		}
		if seen[f] {
			problems = append(problems, fmt.Sprintf("rule %d: duplicate rule", i+1))
		}
		seen[f] = true

		if f.Action == "ignore" && !escalated[f.Category] {
			problems = append(problems, fmt.Sprintf("rule %d: ignore without an error rule to exempt", i+1))
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// revisionPattern accepts version tags and commit hashes.
var revisionPattern = regexp.MustCompile(`^(v?\d+(\.\d+)*[\w.-]*|[0-9a-f]{7,40})$`)

// checkHooks validates the hook configuration and sanity-checks the
// pinned revision formats.
func checkHooks(hooks *HooksConfig) error {
	if hooks == nil {
		return errors.New("hook configuration not loaded")
	}

	var problems []string
	for _, err := range hooks.Validate() {
		problems = append(problems, err.Error())
	}
	for _, repo := range hooks.Repos {
		if repo.Rev != "" && !revisionPattern.MatchString(repo.Rev) {
			problems = append(problems, fmt.Sprintf("%s: rev %q is not a tag or commit", repo.Repo, repo.Rev))
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
