package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inkwell/internal/notify"
	"inkwell/internal/pipeline"
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one article-generation pass",
		Long: `Runs the full pipeline once: topic selection, research, draft,
optimize, link management, persistence, and thumbnail rendering.

A custom prompt may steer the topic and may embed a URL whose content
seeds the research context:

  inkwell generate --category Technology
  inkwell generate --category Finance --prompt "cover https://example.com/report"`,
		Run: generateRunFunc,
	}

	generateCmd.Flags().String("category", "Technology", "Article category")
	generateCmd.Flags().String("prompt", "", "Optional free-text prompt, may embed a seed URL")

	return generateCmd
}

func generateRunFunc(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	prompt, _ := cmd.Flags().GetString("prompt")

	ctx := context.Background()
	application, err := buildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	report, err := application.orch.Run(ctx, pipeline.Request{
		Category:     category,
		CustomPrompt: prompt,
	})
	fmt.Print(notify.FormatReport(report))

	if err != nil {
		// Duplicate-exhaustion is a clean skip and exits zero; only fatal
		// run failures reach here.
		os.Exit(1)
	}
}
