package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	taskStatus string
	taskLimit  int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and manage outbox tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List outbox tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		tasks, err := a.tasks.List(cmd.Context(), taskStatus, taskLimit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		for _, t := range tasks {
			line := fmt.Sprintf("%s  %-20s %-11s attempts=%d  %s",
				t.CreatedAt.Format("2006-01-02 15:04:05"), t.Type, t.Status, t.Attempts, t.ID[:8])
			if t.LastError != "" {
				line += "  " + color.RedString(t.LastError)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var tasksRetryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Requeue a failed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.tasks.RetryFailed(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s task %s requeued\n", color.GreenString("✓"), args[0])
		return nil
	},
}

func init() {
	tasksListCmd.Flags().StringVarP(&taskStatus, "status", "s", "", "Filter by status (pending, in_progress, done, failed)")
	tasksListCmd.Flags().IntVarP(&taskLimit, "limit", "n", 20, "Maximum tasks to list")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksRetryCmd)
	rootCmd.AddCommand(tasksCmd)
}
