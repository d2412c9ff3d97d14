package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/maint"
)

// chdirMaintRoot moves the test into a directory carrying the
// maintenance configuration files.
func chdirMaintRoot(t *testing.T, hooksYAML string) string {
	t.Helper()
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, maint.ConfigName), []byte(""), 0o600))
	if hooksYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tmp, maint.HooksConfigName), []byte(hooksYAML), 0o600))
	}
	t.Chdir(tmp)
	return tmp
}

// Maint Command Tests

func TestMaintCmd_Use(t *testing.T) {
	assert.Equal(t, "maint", maintCmd.Use)
}

func TestMaintCmd_HasSubcommands(t *testing.T) {
	commands := maintCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "bump")
	assert.Contains(t, commandNames, "hooks")
	assert.Contains(t, commandNames, "check")
}

func TestMaintHooksCmd_HasSubcommands(t *testing.T) {
	commands := maintHooksCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "run")
	assert.Contains(t, commandNames, "validate")
	assert.Contains(t, commandNames, "update")
	assert.Contains(t, commandNames, "verify")
}

func TestMaintBumpCmd_RequiresOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"maint", "bump"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

// Maintenance Root Discovery Tests

func TestFindMaintRoot_WalksUpwards(t *testing.T) {
	tmp := chdirMaintRoot(t, "")
	nested := filepath.Join(tmp, "internal", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	root, err := findMaintRoot()

	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(tmp)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindMaintRoot_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := findMaintRoot()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no "+maint.ConfigName+" found")
}

// Hook Validation Tests

func TestMaintHooksValidateCmd_ValidConfig(t *testing.T) {
	chdirMaintRoot(t, `repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.6.0
    hooks:
      - id: check-yaml
`)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"maint", "hooks", "validate"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Hook configuration is valid.")
}

func TestMaintHooksRunCmd_ReportsFileCount(t *testing.T) {
	tmp := chdirMaintRoot(t, `repos:
  - repo: https://example.com/strata/local-hooks
    rev: v1.0.0
    hooks:
      - id: always-pass
        entry: "true"
`)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("hello\n"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"maint", "hooks", "run", "notes.txt"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "always-pass: passed (1 files)")
}

func TestMaintHooksValidateCmd_ReportsErrors(t *testing.T) {
	chdirMaintRoot(t, "repos: []\n")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"maint", "hooks", "validate"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 configuration error(s)")
	assert.Contains(t, buf.String(), "no hook repositories configured")
}
