// Package instruction turns a resolved IDL instruction into the
// discriminator, ordered account keys and payload that go on the wire.
//
// Signer and writable flags start from the IDL and are then overridden by
// name: a reserved role keyword forces the signer flag, and a name containing
// "pda" forces the writable flag. Some accounts are writable or signing only
// because of this table, so it is applied exactly as stated even when it
// contradicts the IDL.
package instruction

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/anchorlite/internal/common"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/resolver"
)

// DerivedAccountMarker marks account names forced writable.
const DerivedAccountMarker = "pda"

// AccountKey is one entry of an instruction's account list.
type AccountKey struct {
	Role       string
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// BuiltInstruction is a fully encoded program instruction.
type BuiltInstruction struct {
	Name          string
	ProgramID     solana.PublicKey
	Discriminator idl.Discriminator
	Keys          []AccountKey
	Data          []byte
}

// AccountMetas converts the keys to solana account metas.
func (b *BuiltInstruction) AccountMetas() solana.AccountMetaSlice {
	metas := make(solana.AccountMetaSlice, 0, len(b.Keys))
	for _, k := range b.Keys {
		metas = append(metas, solana.NewAccountMeta(k.PublicKey, k.IsWritable, k.IsSigner))
	}
	return metas
}

// Instruction returns the instruction in the form accepted by
// solana.NewTransaction.
func (b *BuiltInstruction) Instruction() solana.Instruction {
	return solana.NewInstruction(b.ProgramID, b.AccountMetas(), b.Data)
}

// Signers returns the keys flagged as signers.
func (b *BuiltInstruction) Signers() []solana.PublicKey {
	var out []solana.PublicKey
	for _, k := range b.Keys {
		if k.IsSigner {
			out = append(out, k.PublicKey)
		}
	}
	return out
}

// Override is one row of the flag override table.
type Override struct {
	Name  string
	Match func(role string) bool
	Apply func(key *AccountKey)
}

// DefaultOverrides returns the flag override table.
func DefaultOverrides() []Override {
	return []Override{
		{
			Name:  "reserved_keyword_signer",
			Match: resolver.IsReservedKeyword,
			Apply: func(k *AccountKey) { k.IsSigner = true },
		},
		{
			Name: "derived_account_writable",
			Match: func(role string) bool {
				return strings.Contains(strings.ToLower(role), DerivedAccountMarker)
			},
			Apply: func(k *AccountKey) { k.IsWritable = true },
		},
	}
}

// Builder builds instructions for one program.
type Builder struct {
	common.LoggerMixin
	overrides []Override
	encoder   *idl.ArgEncoder
}

// NewBuilder creates a builder. doc resolves defined argument types and may
// be nil.
func NewBuilder(doc *idl.Document) *Builder {
	return &Builder{
		LoggerMixin: common.NewLoggerMixin(),
		overrides:   DefaultOverrides(),
		encoder:     idl.NewArgEncoder(doc),
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.SetLogger(logger)
	return b
}

// Build assembles ix against the resolved accounts. args holds argument
// values by name and may be nil for instructions without arguments.
func (b *Builder) Build(
	ix *idl.Instruction,
	accounts *resolver.ResolvedAccountSet,
	programID solana.PublicKey,
	args map[string]string,
) (*BuiltInstruction, error) {
	disc := idl.InstructionDiscriminator(ix.Name)
	if len(ix.Discriminator) > 0 && !disc.Equal(ix.Discriminator) {
		b.GetLogger().Warn("declared discriminator differs from computed, using computed",
			"instruction", ix.Name,
			"declared", fmt.Sprintf("%x", []byte(ix.Discriminator)),
			"computed", disc.String(),
		)
	}

	keys, err := b.keys(ix, accounts)
	if err != nil {
		return nil, err
	}

	payload, err := b.encoder.Encode(ix.Args, args)
	if err != nil {
		return nil, err
	}

	var data bytes.Buffer
	data.Grow(idl.DiscriminatorSize + len(payload))
	data.Write(disc[:])
	data.Write(payload)

	built := &BuiltInstruction{
		Name:          ix.Name,
		ProgramID:     programID,
		Discriminator: disc,
		Keys:          keys,
		Data:          data.Bytes(),
	}

	b.GetLogger().Debug("instruction built",
		"instruction", ix.Name,
		"discriminator", disc.String(),
		"keys", len(keys),
		"data_len", len(built.Data),
	)
	return built, nil
}

func (b *Builder) keys(ix *idl.Instruction, accounts *resolver.ResolvedAccountSet) ([]AccountKey, error) {
	keys := make([]AccountKey, 0, len(ix.Accounts))
	for _, acc := range ix.Accounts {
		entry, ok := accounts.Entry(acc.Name)
		if !ok {
			return nil, fmt.Errorf("account %q of %s was not resolved", acc.Name, ix.Name)
		}
		if entry.Omitted {
			continue
		}

		key := AccountKey{
			Role:       acc.Name,
			PublicKey:  entry.Address,
			IsSigner:   acc.Signer,
			IsWritable: acc.Writable,
		}
		for _, o := range b.overrides {
			if o.Match(acc.Name) {
				o.Apply(&key)
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}
