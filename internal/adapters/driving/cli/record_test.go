package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

// resetRecordFlags restores the record flag variables.
func resetRecordFlags() {
	recordPayload = ""
	recordFormat = ""
	recordConvert = ""
}

// insertTestRecord inserts a record through the wired record service.
func insertTestRecord(t *testing.T, meta map[string]any) *domain.Record {
	t.Helper()
	rec, err := recordService.Insert(context.Background(), meta, nil, "")
	require.NoError(t, err)
	return rec
}

// Record Command Tests

func TestRecordCmd_Use(t *testing.T) {
	assert.Equal(t, "record", recordCmd.Use)
}

func TestRecordCmd_HasSubcommands(t *testing.T) {
	commands := recordCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "insert")
	assert.Contains(t, commandNames, "find")
	assert.Contains(t, commandNames, "delete")
}

// Record Insert Tests

func TestRecordInsertCmd_Use(t *testing.T) {
	assert.Equal(t, "insert [metadata]", recordInsertCmd.Use)
}

func TestRecordInsertCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"record", "insert"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRecordInsertCmd_InsertsMetadata(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "insert", `{"kind": "result", "alpha": 0.5}`})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Inserted record ")

	records, err := recordService.Find(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "result", records[0].Metadata["kind"])
}

func TestRecordInsertCmd_RejectsMalformedMetadata(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"record", "insert", "{oops"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "metadata must be a JSON object")
}

func TestRecordInsertCmd_AttachesPayload(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload body\n"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "insert", `{"kind": "note"}`, "--payload", path})
	defer func() {
		rootCmd.SetArgs(nil)
		resetRecordFlags()
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)

	records, err := recordService.Find(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].HasPayload())
	assert.Equal(t, "txt", records[0].PayloadFormat)
}

func TestRecordInsertCmd_PayloadNeedsFormat(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	// A file without extension gives no format to infer.
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"record", "insert", "{}", "--payload", path})
	defer func() {
		rootCmd.SetArgs(nil)
		resetRecordFlags()
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "payload format is required")
}

// Record Find Tests

func TestRecordFindCmd_Use(t *testing.T) {
	assert.Equal(t, "find [filter]", recordFindCmd.Use)
}

func TestRecordFindCmd_NoRecords(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "find"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No records found.")
}

func TestRecordFindCmd_ListsMatches(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	match := insertTestRecord(t, map[string]any{"kind": "result", "alpha": 0.5})
	other := insertTestRecord(t, map[string]any{"kind": "draft"})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "find", `{"kind": "result"}`})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), match.ID)
	assert.Contains(t, buf.String(), `"kind":"result"`)
	assert.NotContains(t, buf.String(), other.ID)
}

// Record Delete Tests

func TestRecordDeleteCmd_Use(t *testing.T) {
	assert.Equal(t, "delete [filter]", recordDeleteCmd.Use)
}

func TestRecordDeleteCmd_DeletesMatches(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	insertTestRecord(t, map[string]any{"kind": "scratch"})
	keep := insertTestRecord(t, map[string]any{"kind": "result"})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "delete", `{"kind": "scratch"}`})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted 1 record(s).")

	records, err := recordService.Find(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, keep.ID, records[0].ID)
}

func TestRecordDeleteCmd_NoMatches(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"record", "delete", `{"kind": "scratch"}`})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No records selected for deletion.")
}

// Service Not Configured Tests

func TestRecordFindCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()
	recordService = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"record", "find"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.ErrorIs(t, err, errNotConfigured)
}
