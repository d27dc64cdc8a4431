package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowforge/internal/domain"
)

var flowHeaders = []string{"ID", "NAME", "STATUS", "NODES", "UPDATED"}

func flowRow(f *domain.Flow) []string {
	return []string{f.ID, f.Name, string(f.Status), strconv.Itoa(len(f.Nodes)), f.UpdatedAt.Format(time.DateTime)}
}

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowDuplicateCmd(clientFn, outputFn),
		newFlowPreviewCmd(clientFn, outputFn),
		newFlowValidateCmd(clientFn, outputFn),
		newFlowExportCmd(clientFn, outputFn),
		newFlowImportCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i := range flows {
				rows[i] = flowRow(&flows[i])
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.CreateFlow(&domain.Flow{Name: name, Description: description})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Flow description")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(flow)
				return nil
			}
			out.Table(flowHeaders, [][]string{flowRow(flow)})

			rows := make([][]string, len(flow.Nodes))
			for i, n := range flow.Nodes {
				rows[i] = []string{n.ID, n.Kind, n.DisplayName()}
			}
			out.Table([]string{"NODE", "KIND", "LABEL"}, rows)
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description, status string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("status") {
				s := strings.ToLower(status)
				if !domain.FlowStatus(s).IsValid() {
					return fmt.Errorf("invalid value for --status: %s", status)
				}
				req.Status = &s
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New flow name")
	cmd.Flags().StringVar(&description, "description", "", "New flow description")
	cmd.Flags().StringVar(&status, "status", "", "New status (draft, active, paused, archived)")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow and its run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowDuplicateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate ID",
		Short: "Copy a flow as a new draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.DuplicateFlow(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow duplicated: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}
}

func newFlowPreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "preview ID",
		Short: "Show execution order without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			preview, err := client.PreviewFlow(args[0])
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
}

func newFlowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate ID",
		Short: "Validate a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ValidateFlow(args[0], strict)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(result)
			}
			if !result.Valid {
				return fmt.Errorf("flow is invalid: %s", result.Error)
			}
			out.Success("Flow is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Also check node properties against their schema")

	return cmd
}

func newFlowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a flow as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := client.ExportFlow(args[0], format)
			if err != nil {
				return err
			}

			if output == "" {
				out.Raw(data)
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			out.Success(fmt.Sprintf("Flow exported to %s", output))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func newFlowImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a flow from an exported JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			flow, err := client.ImportFlow(data, format)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow imported: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Input format (json, yaml); detected from content if empty")

	return cmd
}
