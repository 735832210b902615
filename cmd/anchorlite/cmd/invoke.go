package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/flow"
)

var (
	invokeArgs         []string
	invokeSimulateOnly bool
	invokeAttempts     int
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <instruction>",
	Short: "Resolve, simulate, sign and send an instruction",
	Long: `Invoke an instruction of the selected chain's program. Accounts are
resolved from the IDL, the transaction is simulated first, and nothing is
signed unless the simulation succeeds.

Struct arguments are given as JSON objects, lists as comma-separated values
and byte arrays as 0x hex or base64.`,
	Example: `  anchorlite invoke checkin
  anchorlite invoke transfer --arg amount=1000 --arg memo=hello
  anchorlite invoke place_order --arg 'order={"side":"Bid","price":100}'
  anchorlite invoke checkin --simulate-only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseArgs(invokeArgs)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			f, err := a.newFlow(ctx, flow.Options{})
			if err != nil {
				return err
			}
			a.logger.Debug("flow ready", "flow", f.String())

			req := flow.Request{Instruction: args[0], Args: values, SimulateOnly: invokeSimulateOnly}

			var res *flow.Result
			err = retryExpired(ctx, a.logger, invokeAttempts-1, time.Second, func() error {
				var runErr error
				res, runErr = f.Invoke(ctx, req)
				return runErr
			})

			printResult(res)
			if res != nil && res.Simulation != nil && (invokeSimulateOnly || err != nil) {
				printLogs(res.Simulation.Logs)
			}
			return err
		})
	},
}

// parseArgs turns repeated name=value flags into an argument map.
func parseArgs(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, anchorerrors.InvalidArgument("argument %q must have the form name=value", pair)
		}
		if _, dup := values[name]; dup {
			return nil, anchorerrors.InvalidArgument("argument %q given more than once", name)
		}
		values[name] = value
	}
	return values, nil
}

func init() {
	rootCmd.AddCommand(invokeCmd)

	invokeCmd.Flags().StringArrayVar(&invokeArgs, "arg", nil, "instruction argument as name=value (repeatable)")
	invokeCmd.Flags().BoolVar(&invokeSimulateOnly, "simulate-only", false, "stop after a successful simulation")
	invokeCmd.Flags().IntVar(&invokeAttempts, "attempts", 1, "maximum full attempts; later attempts run only after an expired transaction")
}
