package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lugondev/anchorlite/internal/flow"
)

var checkinAttempts int

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Run the daily check-in",
	Long: `Run the check-in instruction for the configured wallet. When the wallet's
user account does not exist yet, the program's init instruction runs first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			f, err := a.newFlow(ctx, flow.Options{
				OnCheckin: func(ctx context.Context, res *flow.CheckinResult) {
					a.logger.Info("check-in confirmed", "user_account", res.UserAccount.String(), "signature", res.Checkin.Signature.String())
				},
			})
			if err != nil {
				return err
			}

			var res *flow.CheckinResult
			err = retryExpired(ctx, a.logger, checkinAttempts-1, time.Second, func() error {
				var runErr error
				res, runErr = f.Checkin(ctx)
				return runErr
			})

			if res != nil {
				if !res.UserAccount.IsZero() {
					fmt.Printf("User account: %s\n", res.UserAccount)
				}
				if res.Init != nil {
					fmt.Println("\n-- init --")
					printResult(res.Init)
				}
				if res.Checkin != nil {
					fmt.Println("\n-- check-in --")
					printResult(res.Checkin)
				}
			}
			if err != nil {
				return err
			}

			fmt.Println("\n✅ Checked in")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(checkinCmd)
	checkinCmd.Flags().IntVar(&checkinAttempts, "attempts", 1, "maximum full attempts; later attempts run only after an expired transaction")
}
