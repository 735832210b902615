// Package sender requests a signature for an assembled transaction, gets it
// broadcast and waits for confirmation.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/lugondev/anchorlite/internal/common"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
	"github.com/lugondev/anchorlite/internal/transaction"
	"github.com/lugondev/anchorlite/internal/wallet"
)

// DefaultPollInterval is the pause between signature status polls.
const DefaultPollInterval = 500 * time.Millisecond

// RPC is the network surface the orchestrator needs.
type RPC interface {
	SendRaw(ctx context.Context, tx []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
	BlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	Signature          solana.Signature
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Capability         wallet.Capability
}

// Orchestrator sends assembled transactions through a connected wallet.
type Orchestrator struct {
	common.LoggerMixin

	rpc          RPC
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	sleep        transaction.Sleeper
}

// New creates an orchestrator confirming at confirmed.
func New(client RPC) *Orchestrator {
	return &Orchestrator{
		LoggerMixin:  common.NewLoggerMixin(),
		rpc:          client,
		commitment:   rpc.CommitmentConfirmed,
		pollInterval: DefaultPollInterval,
		sleep:        transaction.ContextSleep,
	}
}

// WithLogger sets the logger.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	o.SetLogger(logger)
	return o
}

// WithCommitment sets the confirmation level waited for.
func (o *Orchestrator) WithCommitment(c rpc.CommitmentType) *Orchestrator {
	if c != "" {
		o.commitment = c
	}
	return o
}

// WithPollInterval sets the pause between status polls.
func (o *Orchestrator) WithPollInterval(d time.Duration) *Orchestrator {
	if d > 0 {
		o.pollInterval = d
	}
	return o
}

// WithSleeper replaces the function used between polls.
func (o *Orchestrator) WithSleeper(s transaction.Sleeper) *Orchestrator {
	if s != nil {
		o.sleep = s
	}
	return o
}

// Commitment returns the confirmation level waited for.
func (o *Orchestrator) Commitment() rpc.CommitmentType {
	return o.commitment
}

// Send obtains a signature for asm through w and broadcasts it. The combined
// path lets the wallet broadcast; the sign-only path verifies the signed
// message is the simulated one before submitting the raw bytes itself.
func (o *Orchestrator) Send(ctx context.Context, w *wallet.Connected, asm *transaction.Assembled) (solana.Signature, error) {
	if w == nil {
		return solana.Signature{}, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"reason": "no wallet connected"})
	}

	switch w.Capability {
	case wallet.CapabilityCombinedSignBroadcast:
		signer, ok := w.Provider.(wallet.SignAndSender)
		if !ok {
			return solana.Signature{}, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"capability": w.Capability.String()})
		}
		sig, err := signer.SignAndSendTransaction(ctx, asm.Transaction, wallet.SendOptions{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentProcessed,
		})
		if err != nil {
			return solana.Signature{}, fmt.Errorf("wallet sign and send failed: %w", err)
		}
		o.GetLogger().Info("transaction sent", "signature", sig.String(), "path", w.Capability.String())
		return sig, nil

	case wallet.CapabilitySignOnly:
		signer, ok := w.Provider.(wallet.SignOnly)
		if !ok {
			return solana.Signature{}, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"capability": w.Capability.String()})
		}
		signed, err := signer.SignTransaction(ctx, asm.Transaction)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("wallet sign failed: %w", err)
		}

		msg, err := signed.Message.MarshalBinary()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("failed to serialize signed message: %w", err)
		}
		if !asm.MatchesMessage(msg) {
			return solana.Signature{}, anchorerrors.ErrSignedMessageMismatch
		}

		raw, err := signed.MarshalBinary()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("failed to serialize signed transaction: %w", err)
		}
		sig, err := o.rpc.SendRaw(ctx, raw, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentProcessed,
		})
		if err != nil {
			return solana.Signature{}, err
		}
		o.GetLogger().Info("transaction sent", "signature", sig.String(), "path", w.Capability.String())
		return sig, nil
	}

	return solana.Signature{}, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"capability": w.Capability.String()})
}

// Confirm polls the status of sig until it reaches the configured
// commitment, the cluster reports an execution error, the block height
// passes lastValidBlockHeight or ctx is done.
func (o *Orchestrator) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (*rpc.SignatureStatusesResult, error) {
	for {
		status, err := o.rpc.SignatureStatus(ctx, sig)
		if err != nil {
			return nil, err
		}
		if done, err := o.settled(sig, status); err != nil {
			return nil, err
		} else if done {
			return status, nil
		}

		height, err := o.rpc.BlockHeight(ctx, o.commitment)
		if err != nil {
			return nil, err
		}
		if height > lastValidBlockHeight {
			// The transaction may have landed between the status read and
			// the height read.
			status, err := o.rpc.SignatureStatus(ctx, sig)
			if err != nil {
				return nil, err
			}
			if done, err := o.settled(sig, status); err != nil {
				return nil, err
			} else if done {
				return status, nil
			}
			if status == nil {
				o.GetLogger().Warn("transaction expired",
					"signature", sig.String(),
					"block_height", height,
					"last_valid_block_height", lastValidBlockHeight,
				)
				return nil, &anchorerrors.ConfirmationError{
					Reason:    anchorerrors.ConfirmationExpired,
					Signature: sig.String(),
				}
			}
			// Landed below the target commitment: keep polling.
		}

		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return nil, err
		}
	}
}

// settled reports whether status is final: rejected (with an error) or
// confirmed at the configured commitment.
func (o *Orchestrator) settled(sig solana.Signature, status *rpc.SignatureStatusesResult) (bool, error) {
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		o.GetLogger().Warn("transaction rejected", "signature", sig.String(), "err", status.Err)
		return true, &anchorerrors.ConfirmationError{
			Reason:    anchorerrors.ConfirmationRejected,
			Signature: sig.String(),
			Err:       status.Err,
		}
	}
	if solanaclient.CommitmentSatisfied(status.ConfirmationStatus, o.commitment) {
		o.GetLogger().Debug("transaction confirmed",
			"signature", sig.String(),
			"slot", status.Slot,
			"status", status.ConfirmationStatus,
		)
		return true, nil
	}
	return false, nil
}

// SendAndConfirm sends asm through w and waits for confirmation. When the
// transaction was broadcast but did not confirm, the returned receipt still
// carries its signature.
func (o *Orchestrator) SendAndConfirm(ctx context.Context, w *wallet.Connected, asm *transaction.Assembled) (*Receipt, error) {
	sig, err := o.Send(ctx, w, asm)
	if err != nil {
		return nil, err
	}

	status, err := o.Confirm(ctx, sig, asm.LastValidBlockHeight)
	if err != nil {
		return &Receipt{Signature: sig, Capability: w.Capability}, err
	}

	return &Receipt{
		Signature:          sig,
		Slot:               status.Slot,
		ConfirmationStatus: status.ConfirmationStatus,
		Capability:         w.Capability,
	}, nil
}
