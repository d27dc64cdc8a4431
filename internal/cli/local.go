package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowforge/internal/config"
	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/events"
	"github.com/shaiso/flowforge/internal/flowio"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/orchestrator"
)

// Локальные команды работают с файлом flow без API-сервера.

// NewLocalCmds создаёт команды check, order и exec.
// configFn возвращает конфигурацию окружения (реестр узлов, демо-режим).
func NewLocalCmds(configFn func() (*config.Config, error), outputFn func() *Output) []*cobra.Command {
	return []*cobra.Command{
		newCheckCmd(configFn, outputFn),
		newOrderCmd(outputFn),
		newExecCmd(configFn, outputFn),
	}
}

// loadFlowFile читает flow из экспортированного JSON/YAML файла.
func loadFlowFile(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return flowio.Import(data, flowio.ImportOptions{})
}

func newCheckCmd(configFn func() (*config.Config, error), outputFn func() *Output) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a flow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := configFn()
			if err != nil {
				return err
			}
			flow, err := loadFlowFile(args[0])
			if err != nil {
				return err
			}

			registry := cfg.Registry(slog.Default())
			if err := engine.Validate(flow, registry); err != nil {
				return fmt.Errorf("flow is invalid: %w", err)
			}
			if strict {
				if err := nodes.ValidateFlow(registry, flow); err != nil {
					return fmt.Errorf("flow is invalid: %w", err)
				}
			}

			out.Success(fmt.Sprintf("Flow %q is valid (%d nodes, %d edges)", flow.Name, len(flow.Nodes), len(flow.Edges)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Also check node properties against their schema")

	return cmd
}

func newOrderCmd(outputFn func() *Output) *cobra.Command {
	var batches bool

	cmd := &cobra.Command{
		Use:   "order FILE",
		Short: "Print the execution order of a flow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			flow, err := loadFlowFile(args[0])
			if err != nil {
				return err
			}

			if batches {
				levels, err := engine.Batches(flow)
				if err != nil {
					return err
				}
				rows := make([][]string, len(levels))
				for i, level := range levels {
					rows[i] = []string{strconv.Itoa(i + 1), strings.Join(level, ", ")}
				}
				out.Print([]string{"BATCH", "NODES"}, rows, levels)
				return nil
			}

			preview, err := orchestrator.Preview(flow)
			if err != nil {
				return err
			}
			rows := make([][]string, len(preview.Order))
			for i, id := range preview.Order {
				rows[i] = []string{strconv.Itoa(i + 1), id, preview.Nodes[i]}
			}
			out.Print([]string{"#", "NODE", "NAME"}, rows, preview)
			return nil
		},
	}

	cmd.Flags().BoolVar(&batches, "batches", false, "Group independent nodes into parallel batches")

	return cmd
}

func newExecCmd(configFn func() (*config.Config, error), outputFn func() *Output) *cobra.Command {
	var (
		dataJSON string
		inputs   []string
		demo     bool
		parallel bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Execute a flow file locally and stream its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := configFn()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("demo") {
				cfg.Demo.Enabled = demo
			}
			if cmd.Flags().Changed("parallel") {
				cfg.RunParallel = parallel
			}

			flow, err := loadFlowFile(args[0])
			if err != nil {
				return err
			}
			data, err := parseTriggerData(dataJSON, inputs)
			if err != nil {
				return err
			}

			logger := slog.Default()
			controller := orchestrator.New(orchestrator.Config{
				Registry:         cfg.Registry(logger),
				Faults:           cfg.Faults(),
				Parallel:         cfg.RunParallel,
				StrictProperties: cfg.StrictProperties,
				Logger:           logger,
			})

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			opts := orchestrator.StartOptions{TriggerData: data}
			if !out.jsonMode {
				opts.Callbacks = &events.Callbacks{OnLog: out.LogEntry}
			}

			run, err := controller.Start(ctx, flow, opts)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(run)
			} else {
				out.Table(
					[]string{"STATUS", "DURATION", "ERROR"},
					[][]string{{string(run.Status), formatDuration(run.DurationMs), run.Error}},
				)
			}
			if run.Status != domain.RunStatusSuccess {
				return fmt.Errorf("run %s: %s", run.Status, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataJSON, "data", "", "Trigger data as a JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Trigger data values as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&demo, "demo", false, "Simulate all nodes instead of executing them")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run independent nodes in parallel")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the run after this duration")

	return cmd
}
