package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/anchorlite/internal/config"
	_ "github.com/lugondev/anchorlite/internal/storage/mongo"
	_ "github.com/lugondev/anchorlite/internal/storage/postgres"
	_ "github.com/lugondev/anchorlite/internal/storage/redis"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anchorlite",
	Short: "Anchorlite - schema-driven Anchor transactions",
	Long: `Anchorlite builds, simulates and sends Anchor program instructions
straight from the program's IDL.

It provides commands for:
- Chain selection
- Wallet management
- IDL inspection and error decoding
- Invoking instructions and the daily check-in`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SilenceErrors = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.anchorlite.yaml)")
	flags.String("rpc", "", "Solana RPC endpoint override for the active cluster")
	flags.String("cluster", "devnet", "Solana cluster (mainnet-beta, devnet, testnet, localnet)")
	flags.String("keypair", "~/.config/solana/id.json", "wallet keypair file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for key, name := range map[string]string{
		"solana.rpc":     "rpc",
		"solana.cluster": "cluster",
		"wallet.keypair": "keypair",
		"log.level":      "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
		}
	}
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	cobra.CheckErr(err)
	cfg = loaded

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}
