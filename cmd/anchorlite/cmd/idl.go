package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lugondev/anchorlite/internal/idl"
)

var (
	idlPathFlag string
	idlAccount  bool
	idlLogs     []string
	idlCode     int64
)

var idlCmd = &cobra.Command{
	Use:   "idl",
	Short: "IDL inspection commands",
	Long: `Inspect the program IDL of the selected chain: instructions, error table,
discriminators, and decoding of program errors from execution logs.`,
}

var idlInstructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "List instructions with their accounts and arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIDL(cmd, func(doc *idl.Document) error {
			fmt.Printf("Program: %s %s\n", doc.ProgramName(), doc.ProgramAddress())
			for _, ix := range doc.Instructions {
				fmt.Printf("\n%s  [%s]\n", ix.Name, idl.InstructionDiscriminator(ix.Name))
				for _, acc := range ix.Accounts {
					fmt.Printf("  account %-24s %s\n", acc.Name, accountFlags(acc))
				}
				for _, arg := range ix.Args {
					fmt.Printf("  arg     %-24s %s\n", arg.Name, arg.Type)
				}
			}
			return nil
		})
	},
}

var idlErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Print the program error table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIDL(cmd, func(doc *idl.Document) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tHEX\tNAME\tMESSAGE")
			for _, e := range doc.Errors {
				fmt.Fprintf(w, "%d\t0x%x\t%s\t%s\n", e.Code, e.Code, e.Name, e.Msg)
			}
			return w.Flush()
		})
	},
}

var idlDiscriminatorCmd = &cobra.Command{
	Use:   "discriminator <name>",
	Short: "Compute an instruction or account discriminator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if idlAccount {
			fmt.Println(idl.AccountDiscriminator(args[0]))
			return nil
		}
		fmt.Println(idl.InstructionDiscriminator(args[0]))
		return nil
	},
}

var idlDecodeErrorCmd = &cobra.Command{
	Use:   "decode-error",
	Short: "Decode a program error from log lines or a numeric code",
	Example: `  anchorlite idl decode-error --log "Program log: AnchorError occurred. Error Code: AlreadyCheckedIn. Error Number: 6000. Error Message: Already checked in today."
  anchorlite idl decode-error --code 6000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(idlLogs) == 0 && idlCode < 0 {
			return fmt.Errorf("either --log or --code is required")
		}

		return withIDL(cmd, func(doc *idl.Document) error {
			var pe *idl.ProgramError
			if len(idlLogs) > 0 {
				pe = doc.DecodeError(idlLogs)
			} else {
				pe = idl.DecodeCode(uint32(idlCode), doc.Errors)
			}

			if pe == nil {
				fmt.Println("No program error found in logs")
				return nil
			}

			fmt.Printf("Error:    %s\n", pe.Name)
			if pe.Code != nil {
				fmt.Printf("Code:     %d\n", *pe.Code)
			}
			if pe.Msg != "" {
				fmt.Printf("Message:  %s\n", pe.Msg)
			}
			fmt.Printf("Declared: %t\n", pe.Declared)
			return nil
		})
	},
}

func withIDL(cmd *cobra.Command, fn func(doc *idl.Document) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		doc, err := a.loadIDL(ctx, idlPathFlag)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

func accountFlags(acc idl.AccountMeta) string {
	var flags []string
	if acc.Writable {
		flags = append(flags, "writable")
	}
	if acc.Signer {
		flags = append(flags, "signer")
	}
	if acc.Optional {
		flags = append(flags, "optional")
	}
	if acc.PDA != nil {
		flags = append(flags, "pda")
	}
	if acc.Address != "" {
		flags = append(flags, "address="+acc.Address)
	}
	return strings.Join(flags, " ")
}

func init() {
	rootCmd.AddCommand(idlCmd)
	idlCmd.AddCommand(idlInstructionsCmd)
	idlCmd.AddCommand(idlErrorsCmd)
	idlCmd.AddCommand(idlDiscriminatorCmd)
	idlCmd.AddCommand(idlDecodeErrorCmd)

	idlCmd.PersistentFlags().StringVar(&idlPathFlag, "idl", "", "IDL file or URL (default is the selected chain's IDL)")
	idlDiscriminatorCmd.Flags().BoolVar(&idlAccount, "account", false, "compute an account discriminator instead")
	idlDecodeErrorCmd.Flags().StringArrayVar(&idlLogs, "log", nil, "program log line (repeatable)")
	idlDecodeErrorCmd.Flags().Int64Var(&idlCode, "code", -1, "numeric error code")
}
