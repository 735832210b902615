package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lugondev/anchorlite/internal/chain"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Chain selection commands",
	Long:  `List the configured chains and change the persisted chain selection.`,
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			current := a.registry.Current().Key

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tKEY\tKIND\tNAME\tCLUSTER\tENDPOINT")
			for _, d := range a.registry.Descriptors() {
				marker := ""
				if d.Key == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", marker, d.Key, d.Kind, d.DisplayName, d.Cluster, d.Endpoint())
			}
			return w.Flush()
		})
	},
}

var chainCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			printDescriptor(a.registry.Current())
			return nil
		})
	},
}

var chainSelectCmd = &cobra.Command{
	Use:   "select <key|chain-id>",
	Short: "Select and persist the current chain",
	Long: `Select the current chain by key, or by EVM chain id (decimal or 0x hex).
The key is persisted as given; an unknown key selects the default chain.`,
	Example: `  anchorlite chain select solana
  anchorlite chain select 56`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			unsubscribe := a.registry.Subscribe(func(ev chain.ChainChanged) {
				a.logger.Debug("chain changed", "key", ev.Key)
			})
			defer unsubscribe()

			key := selectionKey(a.registry, args[0])
			if err := a.registry.Select(ctx, key); err != nil {
				return err
			}

			current := a.registry.Current()
			if current.Key != key {
				fmt.Printf("Unknown chain %q, using %s\n", key, current.Key)
			}
			printDescriptor(current)
			return nil
		})
	},
}

var chainExplorerCmd = &cobra.Command{
	Use:   "explorer <signature>",
	Short: "Print the explorer link for a transaction on the current chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			link := a.registry.ExplorerTxLink(args[0])
			if link == "" {
				return fmt.Errorf("chain %s has no explorer configured", a.registry.Current().Key)
			}
			fmt.Println(link)
			return nil
		})
	},
}

// selectionKey maps arg to a chain key. Known keys win; otherwise a numeric
// EVM chain id is looked up. Anything else is returned unchanged.
func selectionKey(r *chain.Registry, arg string) string {
	if _, ok := r.Lookup(arg); ok {
		return arg
	}
	id, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		return arg
	}
	if d, ok := r.LookupByChainID(id); ok {
		return d.Key
	}
	return arg
}

func printDescriptor(d chain.Descriptor) {
	fmt.Printf("Chain: %s (%s)\n", d.Key, d.DisplayName)
	fmt.Printf("  Kind:     %s\n", d.Kind)
	fmt.Printf("  Cluster:  %s\n", d.Cluster)
	fmt.Printf("  Endpoint: %s\n", d.Endpoint())
	if d.IsNonEVM() {
		fmt.Printf("  Program:  %s\n", d.ProgramID)
		fmt.Printf("  IDL:      %s\n", d.IDLPath)
		return
	}
	if id, err := d.ChainID(); err == nil {
		fmt.Printf("  Chain ID: %d\n", id)
	}
	if d.Contract != "" {
		fmt.Printf("  Contract: %s\n", d.Contract)
	}
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.AddCommand(chainListCmd)
	chainCmd.AddCommand(chainCurrentCmd)
	chainCmd.AddCommand(chainSelectCmd)
	chainCmd.AddCommand(chainExplorerCmd)
}
