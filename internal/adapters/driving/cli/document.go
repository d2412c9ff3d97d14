package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage job documents",
	Long: `Reads and writes the key/value document of a job. Keys use dotted
paths into the nested document, e.g. 'result.energy'. Jobs are
addressed by ID or unique prefix.`,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [job] [key]",
	Short: "Print the document or one of its values",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDocumentGet,
}

var documentSetCmd = &cobra.Command{
	Use:   "set [job] [key] [value]",
	Short: "Set a document value",
	Long: `Sets one document value. The value is parsed as JSON when possible,
so numbers, booleans and nested objects keep their type; anything else
is stored as a string. Use -- before negative numbers.`,
	Args: cobra.ExactArgs(3),
	RunE: runDocumentSet,
}

var documentUnsetCmd = &cobra.Command{
	Use:   "unset [job] [key]",
	Short: "Remove a document value",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentUnset,
}

func init() {
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentSetCmd)
	documentCmd.AddCommand(documentUnsetCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	if len(args) == 1 {
		doc, err := jobService.GetDocument(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	value, err := jobService.GetValue(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runDocumentSet(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}

	var value any
	if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
		value = args[2]
	}

	if err := jobService.SetValue(cmd.Context(), args[0], args[1], value); err != nil {
		return err
	}
	cmd.Printf("Set %s.\n", args[1])
	return nil
}

func runDocumentUnset(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}

	if err := jobService.UnsetValue(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Removed %s.\n", args[1])
	return nil
}
