package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl/idltest"
	"github.com/lugondev/anchorlite/internal/instruction"
	"github.com/lugondev/anchorlite/internal/resolver"
	"github.com/lugondev/anchorlite/internal/solana/solanatest"
	"github.com/lugondev/anchorlite/internal/transaction"
	"github.com/lugondev/anchorlite/internal/wallet"
)

var testProgram = solana.MustPublicKeyFromBase58(idltest.ProgramID)

func assemble(t *testing.T, fake *solanatest.FakeRPC, payer solana.PublicKey) *transaction.Assembled {
	t.Helper()
	doc := idltest.MustParse(t, idltest.Checkin)
	ix, _ := doc.Instruction("checkin")
	set, err := resolver.New().Resolve(ix, payer, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	built, err := instruction.NewBuilder(doc).Build(ix, set, testProgram, nil)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	asm, err := transaction.NewAssembler(fake).WithSettleDelay(0).Assemble(context.Background(), built, payer)
	if err != nil {
		t.Fatalf("failed to assemble: %v", err)
	}
	return asm
}

func connect(t *testing.T, p wallet.Provider) *wallet.Connected {
	t.Helper()
	c, err := wallet.Connect(p)
	if err != nil {
		t.Fatalf("failed to connect wallet: %v", err)
	}
	return c
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// tamperingWallet signs a different message than it was given.
type tamperingWallet struct {
	*wallet.Keypair
}

func (w tamperingWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	tx.Message.RecentBlockhash = solana.Hash{9, 9, 9}
	return w.Keypair.SignTransaction(ctx, tx)
}

func TestSendPaths(t *testing.T) {
	tests := []struct {
		name     string
		provider func(kp *wallet.Keypair, fake *solanatest.FakeRPC) wallet.Provider
		expected wallet.Capability
	}{
		{
			name:     "sign-only submits raw bytes",
			provider: func(kp *wallet.Keypair, fake *solanatest.FakeRPC) wallet.Provider { return kp },
			expected: wallet.CapabilitySignOnly,
		},
		{
			name: "combined lets the wallet broadcast",
			provider: func(kp *wallet.Keypair, fake *solanatest.FakeRPC) wallet.Provider {
				return wallet.NewBroadcastingKeypair(kp, fake)
			},
			expected: wallet.CapabilityCombinedSignBroadcast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := solanatest.New()
			kp := wallet.NewKeypair()
			asm := assemble(t, fake, kp.PublicKey())
			w := connect(t, tt.provider(kp, fake))

			receipt, err := New(fake).WithSleeper(noSleep).SendAndConfirm(context.Background(), w, asm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if receipt.Capability != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, receipt.Capability)
			}
			if len(fake.Sent) != 1 {
				t.Fatalf("expected 1 broadcast, got %d", len(fake.Sent))
			}
			opts := fake.SendOpts[0]
			if opts.SkipPreflight {
				t.Error("expected preflight enabled")
			}
			if opts.PreflightCommitment != rpc.CommitmentProcessed {
				t.Errorf("expected processed preflight, got %s", opts.PreflightCommitment)
			}

			sent := fake.SentTransactions()[0]
			if sent.Signatures[0] != receipt.Signature {
				t.Errorf("expected signature %s, got %s", sent.Signatures[0], receipt.Signature)
			}
			msg, _ := sent.Message.MarshalBinary()
			if !asm.MatchesMessage(msg) {
				t.Error("expected broadcast message to equal simulated message")
			}
		})
	}
}

func TestSendRejectsAlteredMessage(t *testing.T) {
	fake := solanatest.New()
	kp := wallet.NewKeypair()
	asm := assemble(t, fake, kp.PublicKey())
	w := connect(t, tamperingWallet{kp})

	_, err := New(fake).Send(context.Background(), w, asm)
	if !errors.Is(err, anchorerrors.ErrSignedMessageMismatch) {
		t.Fatalf("expected ErrSignedMessageMismatch, got %v", err)
	}
	if len(fake.Sent) != 0 {
		t.Errorf("expected nothing broadcast, got %d", len(fake.Sent))
	}
}

func TestSendWithoutCapability(t *testing.T) {
	fake := solanatest.New()
	kp := wallet.NewKeypair()
	asm := assemble(t, fake, kp.PublicKey())

	tests := []struct {
		name string
		w    *wallet.Connected
	}{
		{"nil wallet", nil},
		{"no capability", &wallet.Connected{Provider: kp, Capability: wallet.CapabilityNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(fake).Send(context.Background(), tt.w, asm)
			if !errors.Is(err, anchorerrors.ErrWalletUnavailable) {
				t.Errorf("expected ErrWalletUnavailable, got %v", err)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	sig := solana.Signature{1}
	processed := &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}
	confirmed := &rpc.SignatureStatusesResult{Slot: 42, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	finalized := &rpc.SignatureStatusesResult{Slot: 43, ConfirmationStatus: rpc.ConfirmationStatusFinalized}

	tests := []struct {
		name       string
		commitment rpc.CommitmentType
		setup      func(f *solanatest.FakeRPC)
		reason     anchorerrors.ConfirmationReason
		slot       uint64
		polls      int
	}{
		{
			name:  "confirmed on first poll",
			setup: func(f *solanatest.FakeRPC) { f.Status = confirmed },
			slot:  42,
			polls: 0,
		},
		{
			name: "waits through unknown and processed",
			setup: func(f *solanatest.FakeRPC) {
				f.StatusSeq = []*rpc.SignatureStatusesResult{nil, processed}
				f.Status = confirmed
			},
			slot:  42,
			polls: 2,
		},
		{
			name:       "finalized commitment waits past confirmed",
			commitment: rpc.CommitmentFinalized,
			setup: func(f *solanatest.FakeRPC) {
				f.StatusSeq = []*rpc.SignatureStatusesResult{confirmed}
				f.Status = finalized
			},
			slot:  43,
			polls: 1,
		},
		{
			name: "rejected",
			setup: func(f *solanatest.FakeRPC) {
				f.Status = &rpc.SignatureStatusesResult{
					ConfirmationStatus: rpc.ConfirmationStatusProcessed,
					Err:                map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6000}}},
				}
			},
			reason: anchorerrors.ConfirmationRejected,
		},
		{
			name: "expired",
			setup: func(f *solanatest.FakeRPC) {
				f.Status = nil
				f.HeightSeq = []uint64{999, 1000}
				f.Height = 1001
			},
			reason: anchorerrors.ConfirmationExpired,
			polls:  2,
		},
		{
			name: "lands between status and height reads",
			setup: func(f *solanatest.FakeRPC) {
				f.StatusSeq = []*rpc.SignatureStatusesResult{nil}
				f.Status = confirmed
				f.Height = 1001
			},
			slot:  42,
			polls: 0,
		},
		{
			name: "rejected after height passes bound",
			setup: func(f *solanatest.FakeRPC) {
				f.StatusSeq = []*rpc.SignatureStatusesResult{nil}
				f.Status = &rpc.SignatureStatusesResult{
					ConfirmationStatus: rpc.ConfirmationStatusProcessed,
					Err:                map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6000}}},
				}
				f.Height = 1001
			},
			reason: anchorerrors.ConfirmationRejected,
		},
		{
			name: "landed below commitment keeps polling past bound",
			setup: func(f *solanatest.FakeRPC) {
				f.StatusSeq = []*rpc.SignatureStatusesResult{nil, processed}
				f.Status = confirmed
				f.Height = 1001
			},
			slot:  42,
			polls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := solanatest.New()
			tt.setup(fake)
			polls := 0
			o := New(fake).WithCommitment(tt.commitment).WithSleeper(func(ctx context.Context, d time.Duration) error {
				polls++
				return nil
			})

			status, err := o.Confirm(context.Background(), sig, 1000)
			if polls != tt.polls {
				t.Errorf("expected %d polls, got %d", tt.polls, polls)
			}
			if tt.reason != "" {
				var ce *anchorerrors.ConfirmationError
				if !errors.As(err, &ce) {
					t.Fatalf("expected ConfirmationError, got %v", err)
				}
				if ce.Reason != tt.reason {
					t.Errorf("expected reason %s, got %s", tt.reason, ce.Reason)
				}
				if ce.Signature != sig.String() {
					t.Errorf("expected signature %s, got %s", sig, ce.Signature)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Slot != tt.slot {
				t.Errorf("expected slot %d, got %d", tt.slot, status.Slot)
			}
		})
	}
}

func TestConfirmStopsOnCancel(t *testing.T) {
	fake := solanatest.New()
	fake.Status = nil

	ctx, cancel := context.WithCancel(context.Background())
	o := New(fake).WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := o.Confirm(ctx, solana.Signature{2}, 1000)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSendAndConfirmKeepsSignatureOnExpiry(t *testing.T) {
	fake := solanatest.New()
	fake.Status = nil
	fake.Height = 5000

	kp := wallet.NewKeypair()
	asm := assemble(t, fake, kp.PublicKey())

	receipt, err := New(fake).WithSleeper(noSleep).SendAndConfirm(context.Background(), connect(t, kp), asm)
	if !anchorerrors.IsExpired(err) {
		t.Fatalf("expected expired confirmation, got %v", err)
	}
	if receipt == nil || receipt.Signature.IsZero() {
		t.Error("expected receipt with signature")
	}
}
