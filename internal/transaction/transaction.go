// Package transaction assembles a built instruction into an unsigned
// transaction and dry-runs it before any signature is requested.
//
// The assembler fetches a checkpoint (recent blockhash) at the least strict
// commitment, attaches it and the fee payer, waits a short settling interval
// so that other RPC replicas observe the same checkpoint, and simulates the
// exact message bytes that will later be signed. The simulation request
// disables signature verification and forbids the node from replacing the
// blockhash, so the simulated message is byte-identical to the signed one.
package transaction

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lugondev/anchorlite/internal/common"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/instruction"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
	solanalog "github.com/lugondev/anchorlite/pkg/log"
)

var logParser = solanalog.NewParser()

// DefaultSettleDelay is the pause between fetching the checkpoint and
// simulating.
const DefaultSettleDelay = 1200 * time.Millisecond

// RPC is the network surface the assembler needs.
type RPC interface {
	LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solanaclient.Checkpoint, error)
	Simulate(ctx context.Context, tx []byte, opts solanaclient.SimulateOpts) (*solanaclient.SimulationValue, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Assembled is an unsigned transaction together with the exact message bytes
// that were simulated.
type Assembled struct {
	Transaction          *solana.Transaction
	Message              []byte
	Digest               [32]byte
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	FeePayer             solana.PublicKey
}

// MatchesMessage reports whether msg is byte-identical to the simulated
// message.
func (a *Assembled) MatchesMessage(msg []byte) bool {
	return sha256.Sum256(msg) == a.Digest && len(msg) == len(a.Message)
}

// SimulationResult is the outcome of a dry-run. A failing instruction is a
// result with OK false, not an error.
type SimulationResult struct {
	OK            bool
	Logs          []string
	Err           any
	UnitsConsumed *uint64
}

// Failure converts a failed result into a SimulationFailure, decoding the
// program error against table. It returns nil for a successful result.
func (r *SimulationResult) Failure(table []idl.ErrorDef) *SimulationFailure {
	if r == nil || r.OK {
		return nil
	}
	return &SimulationFailure{
		Logs:    r.Logs,
		Err:     r.Err,
		Decoded: idl.DecodeError(r.Logs, table),
	}
}

// SimulationFailure reports a dry-run that succeeded as a call but whose
// instruction would fail on chain.
type SimulationFailure struct {
	Logs []string
	Err  any

	// Decoded is nil when no program error line was found in Logs.
	Decoded *idl.ProgramError
}

func (f *SimulationFailure) Error() string {
	if f.Decoded != nil {
		return fmt.Sprintf("%s: %s", anchorerrors.ErrCodeSimulatedExecutionFailure, f.Decoded)
	}
	return fmt.Sprintf("%s: %v", anchorerrors.ErrCodeSimulatedExecutionFailure, f.Err)
}

// ErrorCode returns the error code.
func (f *SimulationFailure) ErrorCode() string {
	return anchorerrors.ErrCodeSimulatedExecutionFailure
}

// Is matches ErrSimulatedExecutionFailure.
func (f *SimulationFailure) Is(target error) bool {
	return target == anchorerrors.ErrSimulatedExecutionFailure
}

// Assembler builds and simulates transactions.
type Assembler struct {
	common.LoggerMixin

	rpc                  RPC
	settleDelay          time.Duration
	sleep                Sleeper
	checkpointCommitment rpc.CommitmentType
	simulateCommitment   rpc.CommitmentType
}

// NewAssembler creates an assembler with the default settle delay, fetching
// checkpoints and simulating at processed.
func NewAssembler(client RPC) *Assembler {
	return &Assembler{
		LoggerMixin:          common.NewLoggerMixin(),
		rpc:                  client,
		settleDelay:          DefaultSettleDelay,
		sleep:                ContextSleep,
		checkpointCommitment: rpc.CommitmentProcessed,
		simulateCommitment:   rpc.CommitmentProcessed,
	}
}

// WithLogger sets the logger.
func (a *Assembler) WithLogger(logger *slog.Logger) *Assembler {
	a.SetLogger(logger)
	return a
}

// WithSettleDelay sets the pause before simulation. Zero disables it.
func (a *Assembler) WithSettleDelay(d time.Duration) *Assembler {
	a.settleDelay = d
	return a
}

// WithSleeper replaces the function used to wait out the settle delay.
func (a *Assembler) WithSleeper(s Sleeper) *Assembler {
	if s != nil {
		a.sleep = s
	}
	return a
}

// WithSimulateCommitment sets the commitment of the simulate request.
func (a *Assembler) WithSimulateCommitment(c rpc.CommitmentType) *Assembler {
	if c != "" {
		a.simulateCommitment = c
	}
	return a
}

// Assemble attaches a fresh checkpoint and the fee payer to built and waits
// out the settle delay. The returned transaction carries no signatures.
func (a *Assembler) Assemble(ctx context.Context, built *instruction.BuiltInstruction, payer solana.PublicKey) (*Assembled, error) {
	if built == nil {
		return nil, anchorerrors.InvalidArgument("no instruction to assemble")
	}
	if payer.IsZero() {
		return nil, anchorerrors.InvalidArgument("fee payer is required")
	}
	for _, signer := range built.Signers() {
		if !signer.Equals(payer) {
			return nil, anchorerrors.InvalidArgument("instruction %s requires signer %s, only the fee payer %s can sign", built.Name, signer, payer)
		}
	}

	cp, err := a.rpc.LatestBlockhash(ctx, a.checkpointCommitment)
	if err != nil {
		return nil, anchorerrors.SimulationTransport(err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{built.Instruction()},
		cp.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	if err := a.sleep(ctx, a.settleDelay); err != nil {
		return nil, err
	}

	a.GetLogger().Debug("assembled transaction",
		"instruction", built.Name,
		"blockhash", cp.Blockhash.String(),
		"last_valid_block_height", cp.LastValidBlockHeight,
		"message_bytes", len(msg),
	)

	return &Assembled{
		Transaction:          tx,
		Message:              msg,
		Digest:               sha256.Sum256(msg),
		Blockhash:            cp.Blockhash,
		LastValidBlockHeight: cp.LastValidBlockHeight,
		FeePayer:             payer,
	}, nil
}

// Simulate dry-runs the assembled transaction with zero-filled signature
// slots. Only transport failures are returned as errors.
func (a *Assembler) Simulate(ctx context.Context, asm *Assembled) (*SimulationResult, error) {
	raw, err := asm.Transaction.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	value, err := a.rpc.Simulate(ctx, raw, solanaclient.SimulateOpts{
		Commitment:             a.simulateCommitment,
		SigVerify:              false,
		ReplaceRecentBlockhash: false,
	})
	if err != nil {
		return nil, anchorerrors.SimulationTransport(err)
	}

	result := &SimulationResult{
		OK:            value.Err == nil,
		Logs:          value.Logs,
		Err:           value.Err,
		UnitsConsumed: value.UnitsConsumed,
	}
	if result.UnitsConsumed == nil {
		// Older nodes omit unitsConsumed.
		if units, ok := logParser.ComputeUnits(result.Logs); ok {
			result.UnitsConsumed = &units
		}
	}
	if result.OK {
		a.GetLogger().Debug("simulation succeeded", "logs", len(result.Logs))
	} else {
		a.GetLogger().Warn("simulation failed", "err", result.Err)
	}
	return result, nil
}

// AssembleAndSimulate assembles built for payer and simulates it.
func (a *Assembler) AssembleAndSimulate(ctx context.Context, built *instruction.BuiltInstruction, payer solana.PublicKey) (*Assembled, *SimulationResult, error) {
	asm, err := a.Assemble(ctx, built, payer)
	if err != nil {
		return nil, nil, err
	}
	result, err := a.Simulate(ctx, asm)
	if err != nil {
		return asm, nil, err
	}
	return asm, result, nil
}
