package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP view of the project",
	Long: `Starts an HTTP server exposing the project state as JSON: the
descriptor, registered jobs and their documents, pulses and the task
queue. All endpoints are read-only GETs under /api. Interrupt to stop.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8720", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}

	server := httpapi.New(projectService, jobService, queueService)
	if err := server.Start(serveAddr); err != nil {
		return err
	}
	cmd.Printf("Serving project API on http://%s/api. Interrupt to stop.\n", server.Addr())

	<-cmd.Context().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}
