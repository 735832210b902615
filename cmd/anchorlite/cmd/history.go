package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyAll   bool
	historySig   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded transaction attempts",
	Long:  `Show the transaction attempts recorded in storage, newest first. Defaults to the configured wallet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			attempts := a.repo.Attempts()

			if historySig != "" {
				attempt, err := attempts.FindBySignature(ctx, historySig)
				if err != nil {
					return err
				}
				if attempt == nil {
					return fmt.Errorf("no attempt recorded for signature %s", historySig)
				}
				fmt.Printf("ID:          %s\n", attempt.ID)
				fmt.Printf("Chain:       %s/%s\n", attempt.Chain, attempt.Cluster)
				fmt.Printf("Instruction: %s\n", attempt.Instruction)
				fmt.Printf("Wallet:      %s\n", attempt.Wallet)
				fmt.Printf("Status:      %s\n", attempt.Status)
				if attempt.ErrorCode != "" {
					fmt.Printf("Error:       %s %s %s\n", attempt.ErrorCode, attempt.ErrorName, attempt.ErrorMessage)
				}
				printLogs(attempt.Logs)
				return nil
			}

			owner := ""
			if !historyAll {
				pubKey, err := addressArg(nil)
				if err != nil {
					return err
				}
				owner = pubKey.String()
			}

			recent, err := attempts.FindRecent(ctx, owner, historyLimit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Println("No attempts recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCHAIN\tINSTRUCTION\tSTATUS\tERROR\tSIGNATURE")
			for _, at := range recent {
				errText := at.ErrorName
				if errText == "" {
					errText = at.ErrorCode
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					at.CreatedAt.Local().Format(time.DateTime), at.Cluster, at.Instruction, at.Status, errText, at.Signature)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of attempts to show")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "show attempts of every wallet")
	historyCmd.Flags().StringVar(&historySig, "signature", "", "show the attempt for one signature")
}
