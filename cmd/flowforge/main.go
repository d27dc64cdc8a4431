// FlowForge CLI — управление flows и runs через HTTP API
// и локальное выполнение файлов flow.
//
// Использование:
//
//	flowforge [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	flow   Управление flows
//	run    Управление runs
//	stats  Сводная статистика
//	check  Проверить файл flow
//	order  Порядок выполнения файла flow
//	exec   Выполнить файл flow локально
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowforge/internal/cli"
	"github.com/shaiso/flowforge/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "flowforge",
		Short:         "FlowForge CLI — visual workflow automation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("FLOWFORGE_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	configFn := func() (*config.Config, error) { return config.Load() }

	rootCmd.AddCommand(
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
	)
	rootCmd.AddCommand(cli.NewLocalCmds(configFn, outputFn)...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
