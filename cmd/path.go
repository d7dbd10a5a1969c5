package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jfenske/planward/internal/config"
	"github.com/jfenske/planward/internal/engine"
	"github.com/jfenske/planward/internal/store"
)

var pathCmd = &cobra.Command{
	Use:   "path <project-id>",
	Short: "Print a project's critical path",
	Args:  cobra.ExactArgs(1),
	RunE:  runPath,
}

func init() {
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	projectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("malformed project id %q", args[0])
	}

	cfg := config.Load()
	logger := newLogger(cfg)
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer st.Close()

	path, err := engine.New(st, logger).CriticalPath(ctx, projectID)
	if err != nil {
		return fmt.Errorf("critical path: %w", err)
	}
	if len(path.TaskIDs) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	titles := make(map[string]string)
	tasks, err := st.ListTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		titles[t.ID.String()] = t.Title
	}

	weights, err := st.LiveTaskWeights(ctx, projectID)
	if err != nil {
		return fmt.Errorf("task weights: %w", err)
	}

	idColor := color.New(color.FgCyan)
	for i, id := range path.TaskIDs {
		if i > 0 {
			color.New(color.FgYellow).Println("  ↓")
		}
		fmt.Printf("%s  %s (%dd)\n", idColor.Sprint(id), titles[id], weights[id])
	}
	color.New(color.Bold).Printf("total: %d days\n", path.TotalDays)
	return nil
}
