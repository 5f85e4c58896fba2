package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/transfa/fund-service/internal/app"
	"github.com/transfa/fund-service/internal/config"
	"github.com/transfa/fund-service/internal/flows"
	"github.com/transfa/fund-service/internal/wizard"
)

const demoPassword = "fundctl-demo-password"

var (
	verbose bool
	asJSON  bool

	appCtx   *app.Container
	investor uuid.UUID
)

// Execute runs fundctl. Every invocation works on a fresh in-memory container
// loaded with the demo catalogue and the demo investor's balances.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fundctl",
		Short:        "Drive the fund wizards against an in-memory demo account",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				log.SetOutput(io.Discard)
			}
			cfg := config.Config{
				JWTSecret:                uuid.NewString(),
				JWTIssuer:                "fundctl",
				JWTTTLMinutes:            60,
				SubmitRateLimitPerMinute: 10,
				BcryptCost:               4,
			}
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			appCtx = app.NewContainer(cfg, app.Deps{Logger: logger})
			seed, err := app.SeedDemo(cmd.Context(), appCtx, demoPassword)
			if err != nil {
				return err
			}
			investor = seed.Users[0].ID
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print wizard states as JSON")

	root.AddCommand(fundsCmd(), balancesCmd(), investCmd(), withdrawCmd(), depositCmd())
	return root
}

// runWizard opens kind and feeds one input per step. The last input is the
// confirmation.
func runWizard(ctx context.Context, w io.Writer, kind flows.Kind, inputs ...wizard.Input) (wizard.State, error) {
	state, err := appCtx.Orchestrator.Open(ctx, investor, string(kind))
	if err != nil {
		return state, err
	}
	printState(w, state)
	for _, in := range inputs {
		state, err = appCtx.Orchestrator.Proceed(ctx, investor, string(kind), in)
		if err != nil {
			return state, err
		}
		printState(w, state)
	}
	return state, nil
}

func printState(w io.Writer, state wizard.State) {
	if asJSON {
		raw, _ := json.MarshalIndent(state, "", "  ")
		fmt.Fprintln(w, string(raw))
		return
	}
	if state.View != nil {
		fmt.Fprintf(w, "[%d/%d] %s\n", state.StepIndex+1, state.StepCount, state.View.Title)
		for _, key := range wizard.Payload(state.View.Facts).Keys() {
			fmt.Fprintf(w, "  %s: %s\n", key, state.View.Facts[key])
		}
		return
	}
	if state.Outcome != nil {
		fmt.Fprintf(w, "done: %s\n", state.Outcome.Reference)
		for _, key := range wizard.Payload(state.Outcome.Facts).Keys() {
			fmt.Fprintf(w, "  %s: %s\n", key, state.Outcome.Facts[key])
		}
	}
}
