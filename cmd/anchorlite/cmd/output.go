package cmd

import (
	"fmt"

	"github.com/lugondev/anchorlite/internal/flow"
	solanalog "github.com/lugondev/anchorlite/pkg/log"
)

var logParser = solanalog.NewParser()

func printResult(res *flow.Result) {
	if res == nil {
		return
	}

	fmt.Printf("Instruction: %s\n", res.Instruction)
	if res.Accounts != nil {
		for _, e := range res.Accounts.Entries() {
			if e.Omitted {
				fmt.Printf("  %-24s (omitted)\n", e.Role)
				continue
			}
			fmt.Printf("  %-24s %s\n", e.Role, e.Address)
		}
	}

	if sim := res.Simulation; sim != nil {
		status := "ok"
		if !sim.OK {
			status = "failed"
		}
		fmt.Printf("Simulation:  %s", status)
		if sim.UnitsConsumed != nil {
			fmt.Printf(" (%d compute units)", *sim.UnitsConsumed)
		}
		fmt.Println()
	}

	if !res.Signature.IsZero() {
		fmt.Printf("Signature:   %s\n", res.Signature)
		if res.Slot > 0 {
			fmt.Printf("Slot:        %d\n", res.Slot)
		}
		if res.ExplorerURL != "" {
			fmt.Printf("Explorer:    %s\n", res.ExplorerURL)
		}
	}

	if msgs := logParser.ExtractProgramLogs(res.Logs); len(msgs) > 0 {
		fmt.Println("Program output:")
		for _, msg := range msgs {
			fmt.Printf("  %s\n", msg)
		}
	}

	if res.ProgramError != nil {
		fmt.Printf("Program error: %s\n", res.ProgramError)
	}
}

func printLogs(logs []string) {
	if len(logs) == 0 {
		return
	}
	fmt.Println("Logs:")
	for _, line := range logs {
		fmt.Printf("  %s\n", line)
	}
}
