package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inkwell/internal/notify"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show the most recent run, or a live job when an id is given",
		Args:  cobra.MaximumNArgs(1),
		Run:   statusRunFunc,
	}
	return statusCmd
}

func statusRunFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	application, err := buildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if len(args) == 1 {
		// Job state lives in the process that runs the job; a separate
		// status invocation can only see jobs from this process.
		if state, ok := application.orch.Tracker().Get(args[0]); ok {
			fmt.Printf("Job %s: %s (%d%%) %s\n", state.ID, state.Status, state.Progress, state.Message)
			return
		}
		fmt.Printf("No live state for job %s; showing the last recorded run.\n\n", args[0])
	}

	last, err := application.store.LastRun(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if last == nil {
		fmt.Println("No runs recorded yet")
		return
	}
	fmt.Print(notify.FormatReport(*last))
}
