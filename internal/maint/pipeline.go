package maint

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

const (
	// hookBatchSize caps the number of file arguments per invocation.
	hookBatchSize = 50

	// hookWorkers caps concurrent batches of a single hook.
	hookWorkers = 4
)

// Hook ids whose command line carries the matching policy section of
// the maintenance configuration.
const (
	styleCheckerID = "flake8"
	docCheckerID   = "pydocstyle"
	typeCheckerID  = "mypy"
)

// HookResult is the outcome of one configured hook.
type HookResult struct {
	Repo string
	ID   string

	// Files is the number of files the hook ran over.
	Files int

	// Skipped is true when no files were left after filtering; the
	// hook was not invoked.
	Skipped bool

	// Output is the combined tool output.
	Output string

	// Err is nil when every invocation of the hook succeeded.
	Err error
}

// Passed reports whether the hook ran and succeeded.
func (r HookResult) Passed() bool {
	return !r.Skipped && r.Err == nil
}

// Pipeline runs the configured hooks over repository files.
type Pipeline struct {
	root   string
	cfg    *Config
	hooks  *HooksConfig
	runner driven.TaskRunner
}

// NewPipeline creates a pipeline for the repository at root. cfg may
// be nil; policy arguments and the warning filter export are then
// omitted.
func NewPipeline(root string, cfg *Config, hooks *HooksConfig, runner driven.TaskRunner) *Pipeline {
	return &Pipeline{root: root, cfg: cfg, hooks: hooks, runner: runner}
}

// Run executes every hook in configuration order over the given files,
// or over the whole tree when files is empty. It returns one result
// per hook; a failing hook is a result, not an error, and later hooks
// still run.
func (p *Pipeline) Run(ctx context.Context, files []string) ([]HookResult, error) {
	selected, err := p.selectFiles(files)
	if err != nil {
		return nil, err
	}
	env := p.baseEnv()

	var results []HookResult
	for _, repo := range p.hooks.Repos {
		for _, hook := range repo.Hooks {
			result := HookResult{Repo: repo.Repo, ID: hook.ID}

			scoped, err := p.scopeFiles(hook, selected)
			if err != nil {
				return results, fmt.Errorf("hook %s: %w", hook.ID, err)
			}
			if len(scoped) == 0 {
				result.Skipped = true
				results = append(results, result)
				continue
			}

			result.Files = len(scoped)
			result.Output, result.Err = p.runHook(ctx, hook, scoped, env)
			results = append(results, result)

			if ctx.Err() != nil {
				return results, ctx.Err()
			}
		}
	}
	return results, nil
}

// selectFiles resolves the candidate list and applies the global
// exclude. Paths are slash separated and relative to the root.
func (p *Pipeline) selectFiles(files []string) ([]string, error) {
	var exclude *regexp.Regexp
	if p.hooks.Exclude != "" {
		re, err := regexp.Compile(p.hooks.Exclude)
		if err != nil {
			return nil, fmt.Errorf("global exclude: %w", err)
		}
		exclude = re
	}

	if len(files) == 0 {
		walked, err := p.walkTree()
		if err != nil {
			return nil, err
		}
		files = walked
	} else {
		normalized := make([]string, 0, len(files))
		for _, f := range files {
			normalized = append(normalized, filepath.ToSlash(filepath.Clean(f)))
		}
		sort.Strings(normalized)
		files = normalized
	}

	selected := make([]string, 0, len(files))
	for _, f := range files {
		if exclude != nil && exclude.MatchString(f) {
			continue
		}
		selected = append(selected, f)
	}
	return selected, nil
}

// walkTree lists every regular file under the root, skipping the .git
// directory.
func (p *Pipeline) walkTree() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking repository: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// scopeFiles narrows the candidate list to one hook: its exclude, then
// its files pattern, then its file types.
func (p *Pipeline) scopeFiles(hook Hook, files []string) ([]string, error) {
	filesPattern, types := hook.fileScope()

	var exclude, include *regexp.Regexp
	if hook.Exclude != "" {
		re, err := regexp.Compile(hook.Exclude)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		exclude = re
	}
	if filesPattern != "" {
		re, err := regexp.Compile(filesPattern)
		if err != nil {
			return nil, fmt.Errorf("files: %w", err)
		}
		include = re
	}

	var scoped []string
	for _, f := range files {
		if exclude != nil && exclude.MatchString(f) {
			continue
		}
		if include != nil && !include.MatchString(f) {
			continue
		}
		if !p.matchesTypes(f, types) {
			continue
		}
		scoped = append(scoped, f)
	}
	return scoped, nil
}

// runHook invokes the hook command over the files in batches. Batches
// run concurrently; output is concatenated in batch order.
func (p *Pipeline) runHook(ctx context.Context, hook Hook, files []string, env []string) (string, error) {
	command := append(hook.command(), p.policyArgs(hook.ID)...)

	if len(hook.AdditionalDependencies) > 0 {
		deps := "STRATA_HOOK_DEPS=" + strings.Join(hook.AdditionalDependencies, ",")
		env = append(append([]string(nil), env...), deps)
	}

	batches := batchFiles(files, hookBatchSize)
	outputs := make([]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hookWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			line := shellJoin(append(append([]string(nil), command...), batch...))
			out, err := p.runner.Run(gctx, p.root, line, env)
			outputs[i] = out
			if err != nil {
				return fmt.Errorf("%s: %w", hook.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return strings.Join(outputs, ""), err
}

// baseEnv builds the environment shared by every hook invocation. The
// warning filter rules travel with the tools that honor them.
func (p *Pipeline) baseEnv() []string {
	if p.cfg == nil || len(p.cfg.WarningFilters) == 0 {
		return nil
	}
	rules := make([]string, 0, len(p.cfg.WarningFilters))
	for _, f := range p.cfg.WarningFilters {
		rules = append(rules, f.FilterString())
	}
	return []string{"STRATA_WARNING_FILTERS=" + strings.Join(rules, ",")}
}

// policyArgs renders the maintenance policy section owned by the given
// checker as command arguments.
func (p *Pipeline) policyArgs(id string) []string {
	if p.cfg == nil {
		return nil
	}

	switch id {
	case styleCheckerID:
		l := p.cfg.Lint
		var args []string
		if l.MaxLineLength > 0 {
			args = append(args, fmt.Sprintf("--max-line-length=%d", l.MaxLineLength))
		}
		if len(l.Select) > 0 {
			args = append(args, "--select="+strings.Join(l.Select, ","))
		}
		if len(l.Ignore) > 0 {
			args = append(args, "--ignore="+strings.Join(l.Ignore, ","))
		}
		if len(l.Exclude) > 0 {
			args = append(args, "--exclude="+strings.Join(l.Exclude, ","))
		}
		return args

	case docCheckerID:
		d := p.cfg.DocStyle
		var args []string
		if d.Match != "" {
			args = append(args, "--match="+d.Match)
		}
		if d.MatchDir != "" {
			args = append(args, "--match-dir="+d.MatchDir)
		}
		if d.IgnoreDecorator != "" {
			args = append(args, "--ignore-decorators="+d.IgnoreDecorator)
		}
		if len(d.AddIgnore) > 0 {
			args = append(args, "--add-ignore="+strings.Join(d.AddIgnore, ","))
		}
		return args

	case typeCheckerID:
		if p.cfg.TypeCheck.IgnoreMissingImports {
			return []string{"--ignore-missing-imports"}
		}
	}
	return nil
}

// File types the hook scope understands. "text" is everything outside
// the binary extension set, "executable" checks the file mode, the
// rest go by extension.
var typeExtensions = map[string][]string{
	"python":   {".py", ".pyi"},
	"go":       {".go"},
	"json":     {".json"},
	"yaml":     {".yaml", ".yml"},
	"toml":     {".toml"},
	"markdown": {".md"},
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".tar": true,
	".so": true, ".a": true, ".o": true, ".bin": true, ".exe": true,
	".woff": true, ".woff2": true, ".ttf": true,
	".db": true, ".sqlite": true,
}

func knownType(typ string) bool {
	switch typ {
	case "file", "text", "executable":
		return true
	}
	_, ok := typeExtensions[typ]
	return ok
}

func (p *Pipeline) matchesTypes(file string, types []string) bool {
	for _, typ := range types {
		if !p.matchesType(file, typ) {
			return false
		}
	}
	return true
}

func (p *Pipeline) matchesType(file, typ string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	switch typ {
	case "", "file":
		return true
	case "text":
		return !binaryExtensions[ext]
	case "executable":
		info, err := os.Stat(filepath.Join(p.root, filepath.FromSlash(file)))
		return err == nil && info.Mode().Perm()&0o111 != 0
	default:
		for _, e := range typeExtensions[typ] {
			if ext == e {
				return true
			}
		}
		return false
	}
}

// batchFiles splits files into slices of at most size entries.
func batchFiles(files []string, size int) [][]string {
	var batches [][]string
	for len(files) > size {
		batches = append(batches, files[:size])
		files = files[size:]
	}
	return append(batches, files)
}

// shellJoin quotes the arguments for the shell runner. Plain tokens
// pass through; anything else is single quoted.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

var plainShellToken = regexp.MustCompile(`^[A-Za-z0-9._/=@%+:,-]+$`)

func shellQuote(s string) string {
	if plainShellToken.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
