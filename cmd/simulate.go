package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	balancesadapter "github.com/bnema/atm-server/internal/adapters/render/balances"
	"github.com/bnema/atm-server/internal/application"
	"github.com/bnema/atm-server/internal/client"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errBalanceMismatch = errors.New("server total does not match acknowledged deposits and withdrawals")

type simulationOutput struct {
	Clients   int                          `json:"clients"`
	Succeeded int64                        `json:"succeeded"`
	Rejected  int64                        `json:"rejected"`
	Retries   float64                      `json:"retries"`
	Outcomes  map[string]float64           `json:"outcomes"`
	Expected  decimal.Decimal              `json:"expected_total"`
	Total     decimal.Decimal              `json:"total"`
	Balances  []application.AccountBalance `json:"balances"`
}

func newSimulateCmd(app *app) *cobra.Command {
	cfg := client.DefaultSimulationConfig()
	var (
		deposit string
		asJSON  bool
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run concurrent ATM clients against an in-process server",
		Long:  "simulate starts an in-process server, drives it with concurrent ATM clients issuing random deposits, withdrawals, transfers and balance queries, then checks that the money the server holds matches what the clients saw acknowledged.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := decimal.NewFromString(deposit)
			if err != nil {
				return fmt.Errorf("parse --deposit: %w", err)
			}
			cfg.Deposit = amount

			srv, err := app.startServer(cmd.Context())
			if err != nil {
				return err
			}

			var report client.SimulationReport
			simulate := func(ctx context.Context) error {
				var runErr error
				report, runErr = client.NewSimulator(srv.hub, cfg, app.logger.Named("simulator")).Run(ctx)
				return runErr
			}

			if quiet || asJSON {
				err = simulate(cmd.Context())
			} else {
				label := fmt.Sprintf("Simulating %d clients...", cfg.Clients)
				err = runSimulationSpinner(cmd.Context(), cmd.ErrOrStderr(), label, simulate)
			}
			srv.service.Stop(context.WithoutCancel(cmd.Context()))
			if err != nil {
				return err
			}

			balances := application.SnapshotBalances(srv.storage)
			summary, err := srv.recorder.Summarize()
			if err != nil {
				return err
			}

			expected := report.ExpectedTotal()
			total := application.TotalBalance(balances)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(simulationOutput{
					Clients:   len(report.Users),
					Succeeded: report.Succeeded,
					Rejected:  report.Rejected,
					Retries:   summary.Retries,
					Outcomes:  summary.Outcomes,
					Expected:  expected,
					Total:     total,
					Balances:  balances,
				}); err != nil {
					return err
				}
			} else {
				rendered, err := app.balanceRenderer(balances, balancesadapter.RenderOptions{
					Title:    "Simulation Balances",
					Expected: &expected,
					Notes: []string{
						fmt.Sprintf("requests: %d acknowledged, %d refused", report.Succeeded, report.Rejected),
						fmt.Sprintf("retries: %.0f", summary.Retries),
					},
				})
				if err != nil {
					return fmt.Errorf("render balances: %w", err)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
					return err
				}
			}

			if !total.Equal(expected) {
				return fmt.Errorf("%w: expected %s, got %s", errBalanceMismatch, expected, total)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Clients, "clients", cfg.Clients, "Number of concurrent ATM clients")
	cmd.Flags().IntVar(&cfg.Operations, "operations", cfg.Operations, "Random operations per client")
	cmd.Flags().StringVar(&deposit, "deposit", cfg.Deposit.String(), "Initial deposit per client")
	cmd.Flags().Int64Var(&cfg.MaxAmount, "max-amount", cfg.MaxAmount, "Largest amount of a random operation")
	cmd.Flags().StringVar(&cfg.UserPrefix, "user-prefix", cfg.UserPrefix, "Prefix of simulated user ids")
	cmd.Flags().StringVar(&cfg.Password, "password", cfg.Password, "Password every simulated user logs in with")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Do not show progress")

	return cmd
}
