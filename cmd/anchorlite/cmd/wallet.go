package cmd

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	solanaclient "github.com/lugondev/anchorlite/internal/solana"
	"github.com/lugondev/anchorlite/internal/wallet"
)

var (
	walletOut        string
	walletAirdropSOL float64
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet management commands",
	Long:  `Commands for managing the local Solana keypair including generation, balance checks and devnet airdrops.`,
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new wallet",
	Long:  `Generate a new Solana wallet keypair, optionally saving it as a Solana CLI keypair file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp := wallet.NewKeypair()

		fmt.Println("New wallet generated!")
		fmt.Printf("  Public Key:  %s\n", kp.PublicKey())

		if walletOut != "" {
			if err := kp.SaveToFile(walletOut); err != nil {
				return err
			}
			fmt.Printf("  Saved to:    %s\n", walletOut)
			return nil
		}

		fmt.Printf("  Private Key: %s\n", kp.PrivateKeyBase58())
		fmt.Println("\n⚠️  WARNING: Save your private key securely. Never share it with anyone!")
		return nil
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the configured wallet address",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := wallet.KeypairFromFile(cfg.Wallet.Keypair)
		if err != nil {
			return err
		}
		fmt.Println(kp.PublicKey())
		return nil
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Check wallet balance",
	Long:  `Check the SOL balance of an address on the selected Solana chain. Defaults to the configured wallet.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			pubKey, err := addressArg(args)
			if err != nil {
				return err
			}

			cc, client, err := a.solana()
			if err != nil {
				return err
			}

			lamports, err := client.GetBalance(ctx, pubKey, rpc.CommitmentConfirmed)
			if err != nil {
				return err
			}

			fmt.Printf("Address: %s\n", pubKey)
			fmt.Printf("Cluster: %s\n", cc.Cluster)
			fmt.Printf("Balance: %.9f SOL (%d lamports)\n", solanaclient.LamportsToSOL(lamports), lamports)
			return nil
		})
	},
}

var walletAirdropCmd = &cobra.Command{
	Use:   "airdrop [address]",
	Short: "Request a devnet or testnet airdrop",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			pubKey, err := addressArg(args)
			if err != nil {
				return err
			}

			cc, client, err := a.solana()
			if err != nil {
				return err
			}
			if cc.Cluster == "mainnet-beta" || cc.Cluster == "mainnet" {
				return fmt.Errorf("airdrops are not available on %s", cc.Cluster)
			}

			lamports := uint64(walletAirdropSOL * float64(solana.LAMPORTS_PER_SOL))
			sig, err := client.RequestAirdrop(ctx, pubKey, lamports)
			if err != nil {
				return err
			}

			fmt.Printf("Requested %.9f SOL for %s\n", walletAirdropSOL, pubKey)
			fmt.Printf("  Signature: %s\n", sig)
			if link := cc.ExplorerTxLink(sig.String()); link != "" {
				fmt.Printf("  Explorer:  %s\n", link)
			}
			return nil
		})
	},
}

// addressArg parses the optional address argument, defaulting to the
// configured wallet.
func addressArg(args []string) (solana.PublicKey, error) {
	if len(args) > 0 {
		pubKey, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid address: %w", err)
		}
		return pubKey, nil
	}

	kp, err := wallet.KeypairFromFile(cfg.Wallet.Keypair)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return kp.PublicKey(), nil
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletAddressCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletAirdropCmd)

	walletNewCmd.Flags().StringVarP(&walletOut, "out", "o", "", "write the keypair to this file")
	walletAirdropCmd.Flags().Float64Var(&walletAirdropSOL, "sol", 1, "amount of SOL to request")
}
