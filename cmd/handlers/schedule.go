package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inkwell/internal/notify"
	"inkwell/internal/pipeline"
)

// NewScheduleCmd creates the schedule command
func NewScheduleCmd() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily scheduling pass",
		Long: `Attempts the daily scheduling pass. Intended to be invoked from cron
or any external trigger; concurrent triggers race for a file lock and
losers skip. The pass runs one generation when the daily quota allows.`,
		Run: scheduleRunFunc,
	}

	scheduleCmd.Flags().String("category", "Technology", "Article category for the scheduled run")

	return scheduleCmd
}

func scheduleRunFunc(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")

	ctx := context.Background()
	application, err := buildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	release, ok, err := application.scheduler.Acquire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Scheduling pass skipped (another trigger holds it or the daily quota is reached)")
		return
	}
	defer release()

	report, err := application.orch.Run(ctx, pipeline.Request{Category: category})
	fmt.Print(notify.FormatReport(report))
	if err != nil {
		os.Exit(1)
	}
}
