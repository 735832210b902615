// Package solana wraps the Solana JSON-RPC client with the calls the
// transaction flow makes.
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrNotFound is returned when the requested account, transaction or
// signature status does not exist.
var ErrNotFound = rpc.ErrNotFound

// Checkpoint is a recent blockhash and the last block height at which a
// transaction referencing it is still valid.
type Checkpoint struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// SimulateOpts are the options of a raw simulateTransaction call.
type SimulateOpts struct {
	Commitment             rpc.CommitmentType
	SigVerify              bool
	ReplaceRecentBlockhash bool
}

// SimulationValue is the value of a simulateTransaction response.
type SimulationValue struct {
	Err           any
	Logs          []string
	UnitsConsumed *uint64
}

// TransactionRecord is the execution outcome of a landed transaction.
type TransactionRecord struct {
	Slot uint64
	Err  any
	Logs []string
}

// Client wraps the Solana RPC client
type Client struct {
	rpc      *rpc.Client
	endpoint string
	logger   *slog.Logger
}

// NewClient creates a new Solana client
func NewClient(endpoint string) *Client {
	return &Client{
		rpc:      rpc.New(endpoint),
		endpoint: endpoint,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Endpoint returns the RPC endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RPC returns the underlying RPC client.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// GetBalance returns the balance of an account in lamports
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return result.Value, nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}

// LatestBlockhash returns a recent checkpoint at the given commitment.
func (c *Client) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (Checkpoint, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if result == nil || result.Value == nil {
		return Checkpoint{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return Checkpoint{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// Simulate runs simulateTransaction on a serialized transaction. Every
// option is sent explicitly, false values included, which the typed
// SimulateTransactionWithOpts call does not do.
func (c *Client) Simulate(ctx context.Context, tx []byte, opts SimulateOpts) (*SimulationValue, error) {
	params := rpc.M{
		"encoding":               solana.EncodingBase64,
		"sigVerify":              opts.SigVerify,
		"replaceRecentBlockhash": opts.ReplaceRecentBlockhash,
	}
	if opts.Commitment != "" {
		params["commitment"] = opts.Commitment
	}

	var out rpc.SimulateTransactionResponse
	err := c.rpc.RPCCallForInto(ctx, &out, "simulateTransaction", []interface{}{
		base64.StdEncoding.EncodeToString(tx),
		params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("failed to simulate transaction: empty response")
	}

	return &SimulationValue{
		Err:           out.Value.Err,
		Logs:          out.Value.Logs,
		UnitsConsumed: out.Value.UnitsConsumed,
	}, nil
}

// SendRaw broadcasts a signed, serialized transaction.
func (c *Client) SendRaw(ctx context.Context, tx []byte, opts rpc.TransactionOpts) (solana.Signature, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus returns the status of sig, or nil while the cluster does
// not know it yet.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// BlockHeight returns the current block height.
func (c *Client) BlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	height, err := c.rpc.GetBlockHeight(ctx, commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get block height: %w", err)
	}
	return height, nil
}

// AccountInfo returns the account at pubkey. A missing account is reported
// as ErrNotFound.
func (c *Client) AccountInfo(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*rpc.Account, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	return result.Value, nil
}

// Transaction fetches the execution record of a landed transaction.
func (c *Client) Transaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*TransactionRecord, error) {
	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	rec := &TransactionRecord{Slot: result.Slot}
	if result.Meta != nil {
		rec.Err = result.Meta.Err
		rec.Logs = result.Meta.LogMessages
	}
	return rec, nil
}

// RequestAirdrop requests an airdrop of SOL (only works on devnet/testnet)
func (c *Client) RequestAirdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, pubkey, lamports, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to request airdrop: %w", err)
	}
	return sig, nil
}

// Health checks that the endpoint answers within timeout.
func (c *Client) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentProcessed); err != nil {
		return fmt.Errorf("rpc endpoint %s unreachable: %w", c.endpoint, err)
	}
	c.logger.Debug("rpc endpoint healthy", "endpoint", c.endpoint, "latency", time.Since(start))
	return nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.rpc.Close()
}

// ParseCommitment maps a commitment name to its RPC type, defaulting to
// confirmed.
func ParseCommitment(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// CommitmentRank orders confirmation statuses: processed < confirmed <
// finalized. Unknown values rank 0.
func CommitmentRank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	}
	return 0
}

// CommitmentSatisfied reports whether status reaches commitment.
func CommitmentSatisfied(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	return CommitmentRank(status) >= CommitmentRank(rpc.ConfirmationStatusType(commitment))
}
