package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	logLevel  string
	logLines  int
	logFormat string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the project log",
	Long: `Shows recent project log records at or above the given level. The
format string knows the {asctime}, {levelname}, {origin} and {message}
placeholders.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logLevel, "level", "l", "info", "minimum level: debug, info, warning, error or critical")
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 100, "only output the last n records")
	logCmd.Flags().StringVarP(&logFormat, "format", "f", "{asctime} {levelname} {message}", "record format")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}

	level := domain.LogLevel(strings.ToLower(logLevel))
	if !level.IsValid() {
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidInput, logLevel)
	}

	records, err := projectService.Log(cmd.Context(), level, logLines)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("No logs available.")
		return nil
	}

	for i := range records {
		cmd.Println(formatLogRecord(logFormat, &records[i]))
	}
	return nil
}

// formatLogRecord expands the format placeholders for one record.
func formatLogRecord(format string, r *domain.LogRecord) string {
	replacer := strings.NewReplacer(
		"{asctime}", r.CreatedAt.Format("2006-01-02 15:04:05"),
		"{levelname}", strings.ToUpper(r.Level.String()),
		"{origin}", r.Origin,
		"{message}", r.Message,
	)
	return replacer.Replace(format)
}
