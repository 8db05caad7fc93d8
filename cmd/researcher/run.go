package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/researcher/config"
	agentcore "github.com/mohammad-safakhou/researcher/internal/agent/core"
	agenttele "github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researcher/internal/docstore"
	srv "github.com/mohammad-safakhou/researcher/internal/server"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var limitSteps bool
	var maxSteps int

	var run = &cobra.Command{
		Use:   "run [topic]",
		Short: "Execute a research workflow for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			index, err := docstore.OpenIndex(cfg.Storage.File.IndexDir)
			if err != nil {
				return err
			}
			defer index.Close()
			docs := docstore.NewStore(cfg.Storage.File.DataDir, index)

			llm, err := agentcore.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			toolProvider, err := srv.NewToolProvider(cmd.Context(), cfg, docs)
			if err != nil {
				return err
			}
			tele := agenttele.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			orch := agentcore.NewOrchestrator(cfg, llm, docstore.NewAgentStore(docs), toolProvider, tele)
			defer orch.Close()

			result, err := orch.Run(cmd.Context(), topic, agentcore.RunOptions{
				LimitSteps: limitSteps,
				MaxSteps:   maxSteps,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s finished in %s (%d steps, %d tokens, $%.4f)\n",
				result.ID, result.Duration.Round(time.Millisecond), len(result.History),
				result.TokensUsed, result.Cost)
			fmt.Fprintln(cmd.OutOrStdout(), result.Report)
			return nil
		},
	}
	run.Flags().BoolVar(&limitSteps, "limit-steps", false, "truncate the plan to max-steps")
	run.Flags().IntVar(&maxSteps, "max-steps", 0, "maximum plan steps to execute (0 = config default)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return run
}
