package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"github.com/lugondev/anchorlite/internal/account"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/flow"
	"github.com/lugondev/anchorlite/internal/resolver"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
)

var statusCmd = &cobra.Command{
	Use:   "status [address]",
	Short: "Show the check-in state of a wallet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			owner, err := addressArg(args)
			if err != nil {
				return err
			}

			cc, client, err := a.solana()
			if err != nil {
				return err
			}
			doc, err := a.loadIDL(ctx, "")
			if err != nil {
				return err
			}

			program := cc.ProgramID
			if program == "" {
				program = doc.ProgramAddress()
			}
			programID, err := solana.PublicKeyFromBase58(program)
			if err != nil {
				return anchorerrors.InvalidArgument("invalid program id %q: %v", program, err)
			}

			ix, ok := doc.Instruction(flow.CheckinInstruction)
			if !ok {
				return anchorerrors.InvalidArgument("instruction %q not found in idl", flow.CheckinInstruction)
			}
			accounts, err := resolver.New().WithLogger(a.logger).Resolve(ix, owner, programID)
			if err != nil {
				return err
			}
			userPDA, ok := accounts.Address(flow.UserAccountRole)
			if !ok {
				return anchorerrors.InvalidArgument("instruction %q has no %s account", ix.Name, flow.UserAccountRole)
			}

			lamports, err := client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
			if err != nil {
				return err
			}

			fmt.Printf("Wallet:       %s\n", owner)
			fmt.Printf("Balance:      %.9f SOL\n", solanaclient.LamportsToSOL(lamports))
			fmt.Printf("User account: %s\n", userPDA)

			decoded, err := account.FetchUserPDA(ctx, client, programID, userPDA)
			if err != nil {
				return err
			}
			if decoded == nil {
				fmt.Println("  not initialized")
				return nil
			}

			user := decoded.Data
			fmt.Printf("  Check-ins:    %d\n", user.Count)
			if user.Count > 0 {
				fmt.Printf("  Last:         %s (slot %d)\n", user.LastCheckin().Format(time.RFC3339), user.LastCheckinSlot)
			}
			fmt.Printf("  Today:        %t\n", user.CheckedInOn(time.Now()))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
