// Package wallet defines the signer capabilities the send path understands
// and the probe that picks one of them when a wallet connects.
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
)

// Provider is any connected wallet.
type Provider interface {
	PublicKey() solana.PublicKey
}

// SignOnly signs a transaction and hands it back for the caller to submit.
type SignOnly interface {
	Provider
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// SendOptions are the preflight options of a combined sign-and-send call.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SignAndSender signs and submits in one step.
type SignAndSender interface {
	Provider
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error)
}

// Capability is the send path selected for a wallet.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityCombinedSignBroadcast
	CapabilitySignOnly
)

func (c Capability) String() string {
	switch c {
	case CapabilityCombinedSignBroadcast:
		return "combined-sign-broadcast"
	case CapabilitySignOnly:
		return "sign-only"
	default:
		return "none"
	}
}

// Probe reports the capability of p. The combined capability wins when a
// wallet offers both.
func Probe(p Provider) (Capability, error) {
	if p == nil {
		return CapabilityNone, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{"reason": "no wallet connected"})
	}
	if _, ok := p.(SignAndSender); ok {
		return CapabilityCombinedSignBroadcast, nil
	}
	if _, ok := p.(SignOnly); ok {
		return CapabilitySignOnly, nil
	}
	return CapabilityNone, anchorerrors.ErrWalletUnavailable.WithDetails(map[string]any{
		"reason": "wallet cannot sign",
		"wallet": p.PublicKey().String(),
	})
}

// Connected is a wallet whose capability has been probed once.
type Connected struct {
	Provider   Provider
	Capability Capability
}

// Connect probes p and records its capability.
func Connect(p Provider) (*Connected, error) {
	capability, err := Probe(p)
	if err != nil {
		return nil, err
	}
	return &Connected{Provider: p, Capability: capability}, nil
}

// PublicKey returns the connected wallet's address.
func (c *Connected) PublicKey() solana.PublicKey {
	return c.Provider.PublicKey()
}

// FromConfig loads the keypair at path and wraps it for the given mode:
// sign-and-send broadcasts through sender, sign-only leaves submission to
// the caller.
func FromConfig(path, mode string, sender RawSender) (Provider, error) {
	kp, err := KeypairFromFile(path)
	if err != nil {
		return nil, anchorerrors.ErrWalletUnavailable.WithCause(fmt.Errorf("load keypair %s: %w", path, err))
	}

	switch mode {
	case "sign-and-send":
		if sender == nil {
			return nil, anchorerrors.InvalidArgument("wallet.mode sign-and-send needs an RPC sender")
		}
		return NewBroadcastingKeypair(kp, sender), nil
	case "", "sign-only":
		return kp, nil
	default:
		return nil, anchorerrors.InvalidArgument("unknown wallet.mode %q", mode)
	}
}
