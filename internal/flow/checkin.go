package flow

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/metrics"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
)

const (
	// CheckinInstruction is the instruction run by Checkin.
	CheckinInstruction = "checkin"
	// UserAccountRole is the per-wallet state account of the check-in program.
	UserAccountRole = "user_pda"
)

// CheckinResult is the outcome of a check-in.
type CheckinResult struct {
	// Init is set when the user account did not exist and an init
	// instruction ran first.
	Init    *Result
	Checkin *Result

	UserAccount solana.PublicKey

	// Repeated is true when this Flow already completed a check-in; the
	// OnCheckin hook is not run again.
	Repeated bool
}

// Checkin runs the check-in instruction for the connected wallet. When the
// user account does not exist yet, the IDL's init instruction for it runs
// first within the same gate hold.
func (f *Flow) Checkin(ctx context.Context) (*CheckinResult, error) {
	release, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := &CheckinResult{}
	// fail records a check-in attempt that ended before its own run.
	fail := func(err error) (*CheckinResult, error) {
		res, start := f.begin(ctx, CheckinInstruction)
		out.Checkin = res
		return out, f.finish(ctx, res, start, err)
	}

	ix, ok := f.doc.Instruction(CheckinInstruction)
	if !ok {
		return fail(anchorerrors.InvalidArgument("instruction %q not found in idl", CheckinInstruction))
	}
	accounts, err := f.resolver.Resolve(ix, f.Wallet(), f.programID)
	if err != nil {
		return fail(err)
	}

	if userPDA, ok := accounts.Address(UserAccountRole); ok {
		out.UserAccount = userPDA

		exists, err := f.accountExists(ctx, userPDA)
		if err != nil {
			return fail(err)
		}
		if !exists {
			initIx, ok := f.doc.FindInitInstruction(UserAccountRole)
			if !ok {
				return fail(anchorerrors.InvalidArgument("account %q is not initialized and the idl has no init instruction for it", UserAccountRole))
			}
			f.GetLogger().Info("user account not initialized, running init", "account", userPDA.String(), "instruction", initIx.Name)

			out.Init, err = f.run(ctx, Request{Instruction: initIx.Name})
			if err != nil {
				return out, err
			}
			_ = f.metrics.IncrementCounter(ctx, metrics.MetricUserAccountsInitialized, 1)
		}
	}

	out.Checkin, err = f.run(ctx, Request{Instruction: ix.Name})
	if err != nil {
		return out, err
	}

	if f.checkedIn {
		out.Repeated = true
		f.GetLogger().Warn("check-in success already handled for this flow")
		return out, nil
	}
	f.checkedIn = true
	if f.onCheckin != nil {
		f.onCheckin(ctx, out)
	}
	return out, nil
}

func (f *Flow) accountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := f.rpc.AccountInfo(ctx, address, rpc.CommitmentConfirmed)
	if errors.Is(err, solanaclient.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
