package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				FlowID: flowID,
				Status: strings.ToLower(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "FLOW", "STATUS", "TRIGGER", "DURATION", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.FlowName, r.Status, r.TriggerType, formatDuration(r.DurationMs), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Filter by flow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running, success, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var dataJSON string
	var inputs []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Start a run of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := parseTriggerData(dataJSON, inputs)
			if err != nil {
				return err
			}

			if !wait {
				started, err := client.StartRun(args[0], data)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run started: %s", started.RunID))
				out.Print(
					[]string{"RUN_ID", "FLOW_ID", "STATUS"},
					[][]string{{started.RunID, started.FlowID, started.Status}},
					started,
				)
				return nil
			}

			run, err := client.RunAndWait(args[0], data)
			if err != nil {
				return err
			}
			out.Run(run)
			if run.Error != "" {
				return fmt.Errorf("run %s: %s", run.Status, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataJSON, "data", "", "Trigger data as a JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Trigger data values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish and print its log")

	return cmd
}

// parseTriggerData собирает данные запуска из --data и --input.
// Значения --input перекрывают ключи из --data.
func parseTriggerData(dataJSON string, inputs []string) (map[string]any, error) {
	var data map[string]any
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return nil, fmt.Errorf("invalid --data: must be a JSON object: %w", err)
		}
	}

	for _, kv := range inputs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		if data == nil {
			data = make(map[string]any)
		}
		data[parts[0]] = parts[1]
	}
	return data, nil
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Run(run)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelRun(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancellation requested: %s", args[0]))
			return nil
		},
	}
}

func newRunDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a run from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteRun(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run deleted: %s", args[0]))
			return nil
		},
	}
}

// NewStatsCmd создаёт команду сводной статистики.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show flow and run statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.Stats()
			if err != nil {
				return err
			}

			out.Print(
				[]string{"FLOWS", "ACTIVE", "RUNS", "RUNS_24H", "SUCCESS_RATE", "FAILED_24H"},
				[][]string{{
					strconv.Itoa(stats.TotalFlows),
					strconv.Itoa(stats.ActiveFlows),
					strconv.Itoa(stats.TotalRuns),
					strconv.Itoa(stats.RunsLast24h),
					strconv.Itoa(stats.SuccessRate) + "%",
					strconv.Itoa(stats.FailedRuns),
				}},
				stats,
			)
			return nil
		},
	}
}
