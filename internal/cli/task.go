package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marvin-agent/marvin/internal/task"
)

var (
	taskKind    string
	taskPrompt  string
	taskPayload string
	historyN    int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit and process tasks",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new task",
	Run:   runTaskSubmit,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current task",
	Run:   runTaskStatus,
}

var taskProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline on the current task",
	Run:   runTaskProcess,
}

var taskResultCmd = &cobra.Command{
	Use:   "result",
	Short: "Show the latest decision",
	Run:   runTaskResult,
}

var taskClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the current task without processing it",
	Run:   runTaskClear,
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs",
	Run:   runTaskHistory,
}

func init() {
	taskSubmitCmd.Flags().StringVarP(&taskKind, "kind", "k", "generate_text", "Task kind")
	taskSubmitCmd.Flags().StringVarP(&taskPrompt, "prompt", "p", "", "Prompt payload")
	taskSubmitCmd.Flags().StringVar(&taskPayload, "payload", "", "Raw JSON payload (overrides --prompt)")
	taskHistoryCmd.Flags().IntVarP(&historyN, "limit", "n", 10, "Number of runs to show")

	taskCmd.AddCommand(taskSubmitCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskProcessCmd)
	taskCmd.AddCommand(taskResultCmd)
	taskCmd.AddCommand(taskClearCmd)
	taskCmd.AddCommand(taskHistoryCmd)
}

func mustRuntime() *runtime {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return rt
}

func runTaskSubmit(cmd *cobra.Command, args []string) {
	payload := map[string]any{}
	if taskPayload != "" {
		if err := json.Unmarshal([]byte(taskPayload), &payload); err != nil {
			fmt.Printf("Error: invalid --payload JSON: %v\n", err)
			os.Exit(1)
		}
	} else if taskPrompt != "" {
		payload["prompt"] = taskPrompt
	} else {
		fmt.Println("Error: --prompt or --payload is required")
		os.Exit(1)
	}

	rt := mustRuntime()
	defer rt.Close()

	t := task.NewTask(taskKind, payload)
	if err := rt.marvin.SubmitTask(t); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Task submitted: %s (%s)\n", color.GreenString(t.ID), t.Kind)
}

func runTaskStatus(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.Close()

	t, ok := rt.marvin.CurrentTask()
	if !ok {
		fmt.Println("No task in flight.")
		return
	}
	fmt.Printf("Task:    %s\n", t.ID)
	fmt.Printf("Kind:    %s\n", t.Kind)
	fmt.Printf("Created: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
}

func runTaskProcess(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.Close()

	printHeader("🧠 Marvin Pipeline")
	d, err := rt.marvin.ProcessCurrentTask(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printDecision(d)
}

func runTaskResult(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.Close()

	d, ok := rt.marvin.LatestDecision()
	if !ok {
		fmt.Println("No decision available.")
		return
	}
	printDecision(d)
}

func printDecision(d task.Decision) {
	if d.Flagged {
		fmt.Println(color.YellowString("Decision (flagged):"))
	} else {
		fmt.Println(color.GreenString("Decision:"))
	}
	fmt.Println(d.Text)
	if len(d.Provenance) > 0 {
		fmt.Printf("Provenance: %d verified result(s)\n", len(d.Provenance))
	}
}

func runTaskClear(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.Close()

	if err := rt.marvin.ClearTask(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Task cleared.")
}

func runTaskHistory(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.Close()

	runs, err := rt.timeline.RecentRuns(historyN)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	for _, r := range runs {
		status := r.Status
		switch r.Status {
		case "completed":
			status = color.GreenString(r.Status)
		case "flagged":
			status = color.YellowString(r.Status)
		case "failed":
			status = color.RedString(r.Status)
		}
		fmt.Printf("%s  %-20s %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.TaskKind, status)
	}
}
