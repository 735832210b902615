// Package account decodes on-chain program accounts.
//
// Anchor accounts start with an 8-byte discriminator, sha256("account:<Name>")
// truncated, followed by the borsh-serialized struct. ProgramAccountDecoder
// checks the owner and discriminator before decoding the body into T.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/near/borsh-go"

	"github.com/lugondev/anchorlite/internal/idl"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
)

// ErrDiscriminatorMismatch is returned when account data does not start with
// the expected discriminator.
var ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

// DecodedAccount holds a decoded account together with its metadata.
type DecodedAccount[T any] struct {
	// Address is the account's public key.
	Address solana.PublicKey

	// Lamports is the number of lamports in the account.
	Lamports uint64

	// Owner is the program that owns the account.
	Owner solana.PublicKey

	// Data is the decoded account body.
	Data T
}

// Decoder decodes raw account data.
type Decoder[T any] interface {
	Decode(data []byte) (T, error)
}

// DecoderFunc is a function type that implements Decoder.
type DecoderFunc[T any] func(data []byte) (T, error)

// Decode implements Decoder.
func (f DecoderFunc[T]) Decode(data []byte) (T, error) {
	return f(data)
}

// ProgramAccountDecoder decodes accounts of one named type owned by one
// program.
type ProgramAccountDecoder[T any] struct {
	ProgramID     solana.PublicKey
	Name          string
	Discriminator idl.Discriminator
}

// NewProgramAccountDecoder creates a decoder for accounts named name.
func NewProgramAccountDecoder[T any](programID solana.PublicKey, name string) *ProgramAccountDecoder[T] {
	return &ProgramAccountDecoder[T]{
		ProgramID:     programID,
		Name:          name,
		Discriminator: idl.AccountDiscriminator(name),
	}
}

// Decode strips and checks the discriminator, then borsh-decodes the body.
func (d *ProgramAccountDecoder[T]) Decode(data []byte) (T, error) {
	var out T
	if !d.Discriminator.Matches(data) {
		return out, fmt.Errorf("%w: %s", ErrDiscriminatorMismatch, d.Name)
	}
	if err := borsh.Deserialize(&out, data[idl.DiscriminatorSize:]); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", d.Name, err)
	}
	return out, nil
}

// DecodeAccount decodes an RPC account at address. Accounts owned by another
// program are rejected.
func (d *ProgramAccountDecoder[T]) DecodeAccount(address solana.PublicKey, acc *rpc.Account) (*DecodedAccount[T], error) {
	if acc == nil || acc.Data == nil {
		return nil, fmt.Errorf("account %s has no data", address)
	}
	if !d.ProgramID.IsZero() && !acc.Owner.Equals(d.ProgramID) {
		return nil, fmt.Errorf("account %s is owned by %s, expected %s", address, acc.Owner, d.ProgramID)
	}

	data, err := d.Decode(acc.Data.GetBinary())
	if err != nil {
		return nil, err
	}
	return &DecodedAccount[T]{
		Address:  address,
		Lamports: acc.Lamports,
		Owner:    acc.Owner,
		Data:     data,
	}, nil
}

// Reader fetches raw accounts.
type Reader interface {
	AccountInfo(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*rpc.Account, error)
}

// Fetch reads and decodes the account at address. A missing account returns
// nil and no error.
func Fetch[T any](ctx context.Context, r Reader, d *ProgramAccountDecoder[T], address solana.PublicKey, commitment rpc.CommitmentType) (*DecodedAccount[T], error) {
	acc, err := r.AccountInfo(ctx, address, commitment)
	if errors.Is(err, solanaclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.DecodeAccount(address, acc)
}
