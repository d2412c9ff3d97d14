package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	recordPayload string
	recordFormat  string
	recordConvert string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Manage the record database",
	Long: `The record database stores metadata documents with optional payloads.
Payloads are deduplicated by content digest and can be converted
between registered formats.`,
}

var recordInsertCmd = &cobra.Command{
	Use:   "insert [metadata]",
	Short: "Insert a record",
	Long: `Inserts a record with the given JSON metadata. A payload file may be
attached with --payload; its format is taken from --format or from the
file extension. Author metadata is filled from the configuration when
absent.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordInsert,
}

var recordFindCmd = &cobra.Command{
	Use:   "find [filter]",
	Short: "List records matching a filter",
	Long: `Lists records whose metadata matches the JSON filter. With --convert
the payload of every match is printed in the given format instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecordFind,
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete [filter]",
	Short: "Delete records matching a filter",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordDelete,
}

func init() {
	recordInsertCmd.Flags().StringVar(&recordPayload, "payload", "", "payload file to attach")
	recordInsertCmd.Flags().StringVar(&recordFormat, "format", "", "payload format (default: file extension)")
	recordFindCmd.Flags().StringVar(&recordConvert, "convert", "", "print payloads converted to this format")
	recordCmd.AddCommand(recordInsertCmd)
	recordCmd.AddCommand(recordFindCmd)
	recordCmd.AddCommand(recordDeleteCmd)
	rootCmd.AddCommand(recordCmd)
}

func runRecordInsert(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errNotConfigured
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(args[0]), &meta); err != nil {
		return fmt.Errorf("%w: metadata must be a JSON object: %v", domain.ErrInvalidInput, err)
	}

	var payload io.Reader
	format := recordFormat
	if recordPayload != "" {
		f, err := os.Open(recordPayload)
		if err != nil {
			return fmt.Errorf("opening payload: %w", err)
		}
		defer f.Close()
		payload = f
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(recordPayload), ".")
		}
		if format == "" {
			return fmt.Errorf("%w: payload format is required", domain.ErrInvalidInput)
		}
	}

	rec, err := recordService.Insert(cmd.Context(), meta, payload, format)
	if err != nil {
		return err
	}
	cmd.Printf("Inserted record %s.\n", rec.ID)
	return nil
}

func runRecordFind(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	var filter domain.Filter
	if len(args) > 0 {
		f, err := parseFilter(args[0])
		if err != nil {
			return err
		}
		filter = f
	}

	records, err := recordService.Find(ctx, filter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("No records found.")
		return nil
	}

	if recordConvert != "" {
		return printConvertedPayloads(cmd, records, recordConvert)
	}

	for i := range records {
		meta, err := json.Marshal(records[i].Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		cmd.Printf("%s %s", records[i].ID, meta)
		if records[i].HasPayload() {
			cmd.Printf(" [%s payload]", records[i].PayloadFormat)
		}
		cmd.Println()
	}
	return nil
}

// printConvertedPayloads streams the payload of every record through
// the conversion network and writes the result to the command output.
func printConvertedPayloads(cmd *cobra.Command, records []domain.Record, format string) error {
	ctx := cmd.Context()
	for i := range records {
		if !records[i].HasPayload() {
			continue
		}
		rc, err := recordService.ConvertPayload(ctx, records[i].ID, format)
		if err != nil {
			return fmt.Errorf("converting payload of record %s: %w", records[i].ID, err)
		}
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("writing payload of record %s: %w", records[i].ID, err)
		}
		cmd.Println()
	}
	return nil
}

func runRecordDelete(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	filter, err := parseFilter(args[0])
	if err != nil {
		return err
	}

	matches, err := recordService.Find(ctx, filter)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		cmd.Println("No records selected for deletion.")
		return nil
	}

	if !confirm(cmd, fmt.Sprintf("Delete %d record(s)?", len(matches))) {
		return nil
	}

	count, err := recordService.DeleteMany(ctx, filter)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d record(s).\n", count)
	return nil
}
