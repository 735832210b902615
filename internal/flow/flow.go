// Package flow runs an instruction end to end: resolve accounts, build,
// assemble and simulate, then sign, send and confirm. Resolution and
// simulation failures always stop the flow before a signature is requested.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lugondev/anchorlite/internal/chain"
	"github.com/lugondev/anchorlite/internal/common"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/instruction"
	"github.com/lugondev/anchorlite/internal/metrics"
	"github.com/lugondev/anchorlite/internal/resolver"
	"github.com/lugondev/anchorlite/internal/sender"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
	"github.com/lugondev/anchorlite/internal/storage"
	"github.com/lugondev/anchorlite/internal/transaction"
	"github.com/lugondev/anchorlite/internal/wallet"
)

// RPC is the network surface of a flow.
type RPC interface {
	transaction.RPC
	sender.RPC
	AccountInfo(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*rpc.Account, error)
	Transaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*solanaclient.TransactionRecord, error)
}

// Options configures a Flow. Zero values select defaults.
type Options struct {
	Gate      Gate
	Attempts  storage.AttemptRepository
	Metrics   metrics.Metrics
	Resolver  *resolver.Resolver
	Assembler *transaction.Assembler
	Sender    *sender.Orchestrator
	Logger    *slog.Logger

	// OnCheckin runs once per Flow, after the first successful check-in.
	OnCheckin func(ctx context.Context, res *CheckinResult)
}

// Request names the instruction to invoke and its arguments.
type Request struct {
	Instruction  string
	Args         map[string]string
	SimulateOnly bool
}

// Result is the outcome of one invoke attempt. It is returned alongside
// errors so that callers can report how far the attempt got.
type Result struct {
	Instruction string
	Accounts    *resolver.ResolvedAccountSet
	Built       *instruction.BuiltInstruction
	Simulation  *transaction.SimulationResult
	Signature   solana.Signature
	Slot        uint64
	ExplorerURL string

	// Logs and ProgramError come from the landed transaction.
	Logs         []string
	ProgramError *idl.ProgramError

	Attempt *storage.AttemptModel
}

// Flow runs instructions of one program for one connected wallet on the
// chain it was created for.
type Flow struct {
	common.LoggerMixin

	chain     chain.Context
	doc       *idl.Document
	programID solana.PublicKey
	rpc       RPC
	wallet    *wallet.Connected

	gate      Gate
	attempts  storage.AttemptRepository
	metrics   metrics.Metrics
	resolver  *resolver.Resolver
	builder   *instruction.Builder
	assembler *transaction.Assembler
	sender    *sender.Orchestrator
	onCheckin func(ctx context.Context, res *CheckinResult)
	checkedIn bool
	now       func() time.Time
}

// New creates a flow. The program id comes from the chain context, or from
// the IDL when the context has none.
func New(cc chain.Context, doc *idl.Document, client RPC, w *wallet.Connected, opts Options) (*Flow, error) {
	if doc == nil {
		return nil, anchorerrors.InvalidArgument("no idl loaded")
	}
	if w == nil {
		return nil, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"reason": "no wallet connected"})
	}

	program := cc.ProgramID
	if program == "" {
		program = doc.ProgramAddress()
	}
	programID, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return nil, anchorerrors.InvalidArgument("invalid program id %q: %v", program, err)
	}

	f := &Flow{
		LoggerMixin: common.NewLoggerMixin(),
		chain:       cc,
		doc:         doc,
		programID:   programID,
		rpc:         client,
		wallet:      w,
		gate:        opts.Gate,
		attempts:    opts.Attempts,
		metrics:     opts.Metrics,
		resolver:    opts.Resolver,
		builder:     instruction.NewBuilder(doc),
		assembler:   opts.Assembler,
		sender:      opts.Sender,
		onCheckin:   opts.OnCheckin,
		now:         time.Now,
	}
	f.SetLogger(opts.Logger)

	if f.gate == nil {
		f.gate = NewLocalGate()
	}
	if f.metrics == nil {
		f.metrics = metrics.NewNoopMetrics()
	}
	if f.resolver == nil {
		f.resolver = resolver.New()
	}
	if f.assembler == nil {
		f.assembler = transaction.NewAssembler(client)
	}
	if f.sender == nil {
		f.sender = sender.New(client)
	}

	logger := f.GetLogger()
	f.resolver.SetLogger(logger)
	f.builder.SetLogger(logger)
	f.assembler.SetLogger(logger)
	f.sender.SetLogger(logger)

	return f, nil
}

// ProgramID returns the program the flow invokes.
func (f *Flow) ProgramID() solana.PublicKey {
	return f.programID
}

// Wallet returns the connected wallet's address.
func (f *Flow) Wallet() solana.PublicKey {
	return f.wallet.PublicKey()
}

// Invoke runs one instruction. It fails with ErrFlowInProgress while
// another flow holds the gate.
func (f *Flow) Invoke(ctx context.Context, req Request) (*Result, error) {
	release, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return f.run(ctx, req)
}

func (f *Flow) acquire(ctx context.Context) (func(), error) {
	release, err := f.gate.TryAcquire(ctx)
	if err != nil {
		if errors.Is(err, anchorerrors.ErrFlowInProgress) {
			_ = f.metrics.IncrementCounter(ctx, metrics.MetricFlowRejectedInProgress, 1)
		}
		return nil, err
	}
	return release, nil
}

// run performs a single resolve, build, simulate, send, confirm cycle. The
// caller holds the gate.
func (f *Flow) run(ctx context.Context, req Request) (*Result, error) {
	res, start := f.begin(ctx, req.Instruction)
	logger := f.GetLogger().With("instruction", req.Instruction, "wallet", f.Wallet().String())

	ix, ok := f.doc.Instruction(req.Instruction)
	if !ok {
		err := anchorerrors.InvalidArgument("instruction %q not found in idl", req.Instruction)
		return res, f.finish(ctx, res, start, err)
	}
	res.Instruction = ix.Name
	res.Attempt.Instruction = ix.Name

	accounts, err := f.resolver.Resolve(ix, f.Wallet(), f.programID)
	if err != nil {
		return res, f.finish(ctx, res, start, err)
	}
	res.Accounts = accounts

	built, err := f.builder.Build(ix, accounts, f.programID, req.Args)
	if err != nil {
		return res, f.finish(ctx, res, start, err)
	}
	res.Built = built

	asm, sim, err := f.assembler.AssembleAndSimulate(ctx, built, f.Wallet())
	if err != nil {
		return res, f.finish(ctx, res, start, err)
	}
	res.Simulation = sim
	if sim.UnitsConsumed != nil {
		_ = f.metrics.RecordHistogram(ctx, metrics.MetricSimulationUnitsConsumed, float64(*sim.UnitsConsumed))
	}

	if failure := sim.Failure(f.doc.Errors); failure != nil {
		logger.Warn("simulation failed, not requesting a signature", "error", failure)
		return res, f.finish(ctx, res, start, failure)
	}
	if req.SimulateOnly {
		return res, f.finish(ctx, res, start, nil)
	}

	receipt, err := f.sender.SendAndConfirm(ctx, f.wallet, asm)
	if receipt != nil {
		res.Signature = receipt.Signature
		res.Slot = receipt.Slot
		res.ExplorerURL = f.chain.ExplorerTxLink(receipt.Signature.String())
		_ = f.metrics.IncrementCounter(ctx, metrics.MetricTransactionsSent, 1)
	}
	if err != nil {
		return res, f.finish(ctx, res, start, err)
	}

	f.inspect(ctx, res)
	logger.Info("transaction confirmed", "signature", res.Signature.String(), "slot", res.Slot, "explorer", res.ExplorerURL)
	return res, f.finish(ctx, res, start, nil)
}

// begin counts a new attempt for instruction and returns its result and
// start time. Every begun attempt must end in finish.
func (f *Flow) begin(ctx context.Context, instruction string) (*Result, time.Time) {
	_ = f.metrics.IncrementCounter(ctx, metrics.MetricFlowAttempts, 1)
	res := &Result{Instruction: instruction}
	res.Attempt = storage.NewAttempt(f.chain.Key, f.chain.Cluster, f.programID.String(), instruction, f.Wallet().String())
	return res, f.now()
}

// inspect fetches the landed transaction's logs and decodes any program
// error. Failures are logged only.
func (f *Flow) inspect(ctx context.Context, res *Result) {
	rec, err := f.rpc.Transaction(ctx, res.Signature, rpc.CommitmentConfirmed)
	if err != nil {
		f.GetLogger().Debug("failed to fetch transaction logs", "signature", res.Signature.String(), "error", err)
		return
	}
	res.Logs = rec.Logs
	if rec.Slot != 0 {
		res.Slot = rec.Slot
	}
	if dec := idl.DecodeError(rec.Logs, f.doc.Errors); dec != nil {
		res.ProgramError = dec
		f.GetLogger().Warn("program error in landed transaction", "signature", res.Signature.String(), "error", dec.Error())
	}
}

// finish records the attempt and metrics for res and returns err.
func (f *Flow) finish(ctx context.Context, res *Result, start time.Time, err error) error {
	a := res.Attempt
	elapsed := f.now().Sub(start)
	a.DurationMs = elapsed.Milliseconds()
	if !res.Signature.IsZero() {
		a.Signature = res.Signature.String()
	}
	if res.Simulation != nil {
		a.UnitsConsumed = res.Simulation.UnitsConsumed
		a.Logs = res.Simulation.Logs
	}
	if len(res.Logs) > 0 {
		a.Logs = res.Logs
	}
	if err != nil {
		a.ErrorCode = anchorerrors.CodeOf(err)
		a.ErrorMessage = err.Error()
	}
	if res.ProgramError != nil {
		setProgramError(a, res.ProgramError)
	}

	var (
		failure *transaction.SimulationFailure
		confirm *anchorerrors.ConfirmationError
	)
	switch {
	case err == nil && res.Signature.IsZero():
		a.Status = storage.AttemptStatusSimulated
	case err == nil:
		a.Status = storage.AttemptStatusConfirmed
		_ = f.metrics.IncrementCounter(ctx, metrics.MetricTransactionsConfirmed, 1)
	case errors.As(err, &failure):
		a.Status = storage.AttemptStatusSimulationFailed
		if failure.Decoded != nil {
			setProgramError(a, failure.Decoded)
		}
		_ = f.metrics.IncrementCounter(ctx, metrics.MetricSimulationsFailed, 1)
	case errors.As(err, &confirm):
		if confirm.Reason == anchorerrors.ConfirmationExpired {
			a.Status = storage.AttemptStatusExpired
			_ = f.metrics.IncrementCounter(ctx, metrics.MetricConfirmationsExpired, 1)
		} else {
			a.Status = storage.AttemptStatusRejected
			if code, ok := CustomErrorCode(confirm.Err); ok {
				setProgramError(a, idl.DecodeCode(code, f.doc.Errors))
			}
			_ = f.metrics.IncrementCounter(ctx, metrics.MetricConfirmationsRejected, 1)
		}
	default:
		a.Status = storage.AttemptStatusFailed
	}

	_ = f.metrics.RecordHistogram(ctx, metrics.MetricFlowDurationMilliseconds, float64(elapsed.Milliseconds()))

	if f.attempts != nil {
		if serr := f.attempts.Save(ctx, a); serr != nil {
			f.GetLogger().Error("failed to record attempt", "id", a.ID, "error", serr)
		}
	}
	return err
}

func setProgramError(a *storage.AttemptModel, pe *idl.ProgramError) {
	a.ErrorName = pe.Name
	a.ErrorNumber = pe.Code
	if pe.Msg != "" {
		a.ErrorMessage = pe.Msg
	}
}

// CustomErrorCode extracts the custom program error code from an RPC
// transaction error of the form {"InstructionError": [index, {"Custom": code}]}.
func CustomErrorCode(txErr any) (uint32, bool) {
	m, ok := txErr.(map[string]any)
	if !ok {
		return 0, false
	}
	pair, ok := m["InstructionError"].([]any)
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := inner["Custom"].(type) {
	case float64:
		if v < 0 || v > float64(^uint32(0)) {
			return 0, false
		}
		return uint32(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint32(v), true
	case uint32:
		return v, true
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		if err != nil || n < 0 || n > int64(^uint32(0)) {
			return 0, false
		}
		return uint32(n), true
	}
	return 0, false
}

func (f *Flow) String() string {
	return fmt.Sprintf("flow(%s/%s, program=%s, wallet=%s)", f.chain.Key, f.chain.Cluster, f.programID, f.Wallet())
}
