package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/director/internal/cli"
	"github.com/aretw0/director/internal/logging"
	"github.com/aretw0/director/internal/presentation/tui"
	"github.com/aretw0/director/pkg/domain"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <transcript>",
	Short: "Replay a transcript and print the Directive after every turn",
	Long: `Replays a YAML or JSON transcript turn by turn through a fresh engine and
prints each Directive. Output is coloured on a terminal; use --json for one
Directive per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		opening, _ := cmd.Flags().GetBool("opening")
		debug, _ := cmd.Flags().GetBool("debug")

		transcript, err := cli.LoadTranscript(args[0])
		if err != nil {
			return err
		}

		logger := logging.NewNop()
		if debug {
			if logger, err = cli.NewLogger(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		// Replays never touch shared state.
		cfg.Redis.Addr = ""

		ctx := cmd.Context()
		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		eng, err := rt.NewEngine(ctx, "replay-"+uuid.NewString(), nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		renderer := tui.NewRenderer(out)
		emit := func(turn *domain.Turn, d domain.Directive) {
			if asJSON {
				_ = enc.Encode(d)
				return
			}
			if turn != nil {
				renderer.Turn(*turn)
			}
			renderer.Directive(d)
		}

		if opening {
			emit(nil, eng.Opening(transcript.Theme, domain.LabelA))
		}
		if err := cli.Replay(ctx, eng, transcript, func(t domain.Turn, d domain.Directive) {
			emit(&t, d)
		}); err != nil {
			return err
		}

		if asJSON {
			return nil
		}
		stats := eng.Stats()
		fmt.Fprintf(out, "\n%d turns, interventions %v, external calls %d\n",
			stats.Turn, stats.Interventions, stats.Usage.Daily.Used)
		if end, reason := eng.ShouldEnd(); end {
			fmt.Fprintf(out, "conversation should end: %s\n", reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().Bool("json", false, "Print one JSON Directive per line")
	evaluateCmd.Flags().Bool("opening", false, "Print the opening Directive first")
	evaluateCmd.Flags().Bool("debug", false, "Log engine decisions to stderr")
}
