package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Keypair is a local ed25519 signer loaded from a Solana CLI keypair file.
// It signs but never broadcasts.
type Keypair struct {
	privateKey solana.PrivateKey
}

// NewKeypair generates a new random keypair
func NewKeypair() *Keypair {
	account := solana.NewWallet()
	return &Keypair{
		privateKey: account.PrivateKey,
	}
}

// KeypairFromPrivateKey creates a keypair from an existing private key
func KeypairFromPrivateKey(pk solana.PrivateKey) *Keypair {
	return &Keypair{
		privateKey: pk,
	}
}

// KeypairFromBase58 creates a keypair from a base58-encoded private key
func KeypairFromBase58(key string) (*Keypair, error) {
	pk, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Keypair{privateKey: pk}, nil
}

// KeypairFromFile loads a keypair from a JSON keypair file (Solana CLI format).
// A leading ~ is expanded to the home directory.
func KeypairFromFile(path string) (*Keypair, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	var keypair []byte
	if err := json.Unmarshal(data, &keypair); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}

	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair size: expected %d, got %d", ed25519.PrivateKeySize, len(keypair))
	}

	return &Keypair{
		privateKey: solana.PrivateKey(keypair),
	}, nil
}

// PublicKey returns the keypair's public key
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.privateKey.PublicKey()
}

// SignTransaction fills the fee payer signature of tx. The transaction is
// signed in place and returned.
func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pub := k.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// SaveToFile saves the keypair to a JSON file (Solana CLI format)
func (k *Keypair) SaveToFile(path string) error {
	path, err := ExpandHome(path)
	if err != nil {
		return err
	}

	ints := make([]int, len(k.privateKey))
	for i, b := range k.privateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keypair directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}

	return nil
}

// PrivateKeyBase58 returns the base58 encoded private key.
func (k *Keypair) PrivateKeyBase58() string {
	return k.privateKey.String()
}

// String returns the public key as a string
func (k *Keypair) String() string {
	return k.PublicKey().String()
}

// RawSender broadcasts serialized transactions.
type RawSender interface {
	SendRaw(ctx context.Context, tx []byte, opts rpc.TransactionOpts) (solana.Signature, error)
}

// BroadcastingKeypair is a Keypair that also submits what it signs, giving it
// the combined sign-and-broadcast capability.
type BroadcastingKeypair struct {
	*Keypair
	sender RawSender
}

// NewBroadcastingKeypair pairs k with an RPC sender.
func NewBroadcastingKeypair(k *Keypair, sender RawSender) *BroadcastingKeypair {
	return &BroadcastingKeypair{Keypair: k, sender: sender}
}

// SignAndSendTransaction signs tx and broadcasts it with the given options.
func (b *BroadcastingKeypair) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction, opts SendOptions) (solana.Signature, error) {
	signed, err := b.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize signed transaction: %w", err)
	}

	return b.sender.SendRaw(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
