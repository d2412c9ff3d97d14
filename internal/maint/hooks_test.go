package maint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hooksFixture = `# hook pipeline
exclude: '^vendored/|^generated/'

repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.6.0
    hooks:
      - id: end-of-file-fixer
      - id: check-json
      - id: check-yaml
        exclude: '^docs/site\.yml$'
  - repo: https://github.com/psf/black
    rev: 24.4.2
    hooks:
      - id: black
        args: ['--quiet']
  - repo: https://github.com/pre-commit/mirrors-mypy
    rev: v1.10.0
    hooks:
      - id: mypy
        additional_dependencies: [types-PyYAML]
`

func writeHooksConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, HooksConfigName), []byte(content), 0o644))
}

func TestLoadHooksConfig(t *testing.T) {
	root := t.TempDir()
	writeHooksConfig(t, root, hooksFixture)

	cfg, err := LoadHooksConfig(root)
	require.NoError(t, err)

	assert.Equal(t, "^vendored/|^generated/", cfg.Exclude)
	require.Len(t, cfg.Repos, 3)

	first := cfg.Repos[0]
	assert.Equal(t, "https://github.com/pre-commit/pre-commit-hooks", first.Repo)
	assert.Equal(t, "v4.6.0", first.Rev)
	require.Len(t, first.Hooks, 3)
	assert.Equal(t, "end-of-file-fixer", first.Hooks[0].ID)
	assert.Equal(t, `^docs/site\.yml$`, first.Hooks[2].Exclude)

	assert.Equal(t, []string{"--quiet"}, cfg.Repos[1].Hooks[0].Args)
	assert.Equal(t, []string{"types-PyYAML"}, cfg.Repos[2].Hooks[0].AdditionalDependencies)
}

func TestLoadHooksConfig_Missing(t *testing.T) {
	_, err := LoadHooksConfig(t.TempDir())
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadHooksConfig_UnknownField(t *testing.T) {
	root := t.TempDir()
	writeHooksConfig(t, root, `
repos:
  - repo: https://github.com/psf/black
    rev: 24.4.2
    hooks:
      - id: black
        langauge: python
`)

	_, err := LoadHooksConfig(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "langauge")
}

func TestHooksConfig_Validate(t *testing.T) {
	valid := func() *HooksConfig {
		return &HooksConfig{
			Exclude: "^vendored/",
			Repos: []HookRepo{
				{
					Repo:  "https://github.com/psf/black",
					Rev:   "24.4.2",
					Hooks: []Hook{{ID: "black"}},
				},
			},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.Empty(t, valid().Validate())
	})

	t.Run("bad global exclude", func(t *testing.T) {
		cfg := valid()
		cfg.Exclude = "(unclosed"
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "global exclude")
	})

	t.Run("no repos", func(t *testing.T) {
		cfg := &HooksConfig{}
		require.Len(t, cfg.Validate(), 1)
	})

	t.Run("empty rev", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Rev = ""
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "empty rev")
	})

	t.Run("empty repo url", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Repo = ""
		require.Len(t, cfg.Validate(), 1)
	})

	t.Run("no hooks", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks = nil
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no hooks")
	})

	t.Run("duplicate hook id", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks = append(cfg.Repos[0].Hooks, Hook{ID: "black"})
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "duplicate")
	})

	t.Run("unknown id without entry", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks = []Hook{{ID: "made-up-tool"}}
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "made-up-tool")
	})

	t.Run("unknown id with entry", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks = []Hook{{ID: "made-up-tool", Entry: "made-up-tool --strict"}}
		assert.Empty(t, cfg.Validate())
	})

	t.Run("bad hook exclude", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks[0].Exclude = "[z-a]"
		require.Len(t, cfg.Validate(), 1)
	})

	t.Run("bad files pattern", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks[0].Files = "(("
		require.Len(t, cfg.Validate(), 1)
	})

	t.Run("unknown file type", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks[0].Types = []string{"fortran"}
		errs := cfg.Validate()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "fortran")
	})

	t.Run("hook with empty id", func(t *testing.T) {
		cfg := valid()
		cfg.Repos[0].Hooks = []Hook{{}}
		require.Len(t, cfg.Validate(), 1)
	})
}

func TestHook_Command(t *testing.T) {
	t.Run("known id uses table entry", func(t *testing.T) {
		assert.Equal(t, []string{"trailing-whitespace-fixer"}, Hook{ID: "trailing-whitespace"}.command())
	})

	t.Run("entry override", func(t *testing.T) {
		h := Hook{ID: "mypy", Entry: "python -m mypy"}
		assert.Equal(t, []string{"python", "-m", "mypy"}, h.command())
	})

	t.Run("args follow entry", func(t *testing.T) {
		h := Hook{ID: "black", Args: []string{"--quiet", "--diff"}}
		assert.Equal(t, []string{"black", "--quiet", "--diff"}, h.command())
	})

	t.Run("unknown id falls back to id", func(t *testing.T) {
		assert.Equal(t, []string{"custom"}, Hook{ID: "custom"}.command())
	})
}

func TestHook_FileScope(t *testing.T) {
	t.Run("defaults from table", func(t *testing.T) {
		files, types := Hook{ID: "requirements-txt-fixer"}.fileScope()
		assert.Equal(t, `(^|/)requirements[^/]*\.txt$`, files)
		assert.Empty(t, types)

		files, types = Hook{ID: "black"}.fileScope()
		assert.Empty(t, files)
		assert.Equal(t, []string{"python"}, types)
	})

	t.Run("explicit values win", func(t *testing.T) {
		h := Hook{ID: "black", Files: `^internal/`, Types: []string{"text"}}
		files, types := h.fileScope()
		assert.Equal(t, "^internal/", files)
		assert.Equal(t, []string{"text"}, types)
	})
}
