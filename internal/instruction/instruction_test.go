package instruction

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/idl/idltest"
	"github.com/lugondev/anchorlite/internal/resolver"
)

var (
	testWallet  = solana.MustPublicKeyFromBase58(idltest.Wallet)
	testProgram = solana.MustPublicKeyFromBase58(idltest.ProgramID)
)

func build(t *testing.T, b *Builder, ix *idl.Instruction, args map[string]string) *BuiltInstruction {
	t.Helper()
	set, err := resolver.New().Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	built, err := b.Build(ix, set, testProgram, args)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	return built
}

func TestBuildCheckinFixture(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)

	tests := []struct {
		name  string
		data  string
		flags []AccountKey
	}{
		{
			name: "checkin",
			data: "dfafa51b7b0736fc",
			flags: []AccountKey{
				{Role: "user_pda", IsWritable: true},
				{Role: "authority", IsSigner: true},
			},
		},
		{
			name: "initialize_user",
			data: "6f11b9fa3c7a26fe",
			flags: []AccountKey{
				{Role: "user_pda", IsWritable: true},
				{Role: "authority", IsSigner: true, IsWritable: true},
				{Role: "system_program"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, _ := doc.Instruction(tt.name)
			built := build(t, NewBuilder(doc), ix, nil)

			if got := hex.EncodeToString(built.Data); got != tt.data {
				t.Errorf("expected data %s, got %s", tt.data, got)
			}
			if len(built.Keys) != len(tt.flags) {
				t.Fatalf("expected %d keys, got %d", len(tt.flags), len(built.Keys))
			}
			for i, want := range tt.flags {
				got := built.Keys[i]
				if got.Role != want.Role || got.IsSigner != want.IsSigner || got.IsWritable != want.IsWritable {
					t.Errorf("key %d: expected %+v, got %+v", i, want, got)
				}
			}
			if built.Keys[0].PublicKey.String() != idltest.UserPDA {
				t.Errorf("expected user pda %s, got %s", idltest.UserPDA, built.Keys[0].PublicKey)
			}

			ins := built.Instruction()
			if ins.ProgramID() != testProgram {
				t.Errorf("expected program %s, got %s", testProgram, ins.ProgramID())
			}
			if len(ins.Accounts()) != len(tt.flags) {
				t.Errorf("expected %d metas, got %d", len(tt.flags), len(ins.Accounts()))
			}
		})
	}
}

func TestBuildIsStable(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)
	ix, _ := doc.Instruction("checkin")
	b := NewBuilder(doc)

	first := build(t, b, ix, nil)
	second := build(t, b, ix, nil)
	if !bytes.Equal(first.Data, second.Data) {
		t.Errorf("expected identical payloads, got %x and %x", first.Data, second.Data)
	}
}

func TestOverrideTable(t *testing.T) {
	ix := &idl.Instruction{
		Name: "settle",
		Accounts: []idl.AccountMeta{
			{Name: "payer", Signer: true},
			{Name: "Owner"},
			{Name: "escrowPda"},
			{Name: "new_authority", PDA: &idl.PDA{Seeds: []idl.Seed{{Kind: idl.SeedConst, Value: idl.Bytes("na")}}}},
			{Name: "oracle", Optional: true},
			{Name: "rent"},
		},
	}
	ix.Accounts[2].PDA = &idl.PDA{Seeds: []idl.Seed{{Kind: idl.SeedConst, Value: idl.Bytes("escrow")}}}

	built := build(t, NewBuilder(nil), ix, nil)

	expected := []AccountKey{
		{Role: "payer", IsSigner: true},
		{Role: "Owner", IsSigner: true},
		{Role: "escrowPda", IsWritable: true},
		{Role: "new_authority"},
		{Role: "rent"},
	}
	if len(built.Keys) != len(expected) {
		t.Fatalf("expected %d keys (optional skipped), got %d", len(expected), len(built.Keys))
	}
	for i, want := range expected {
		got := built.Keys[i]
		if got.Role != want.Role || got.IsSigner != want.IsSigner || got.IsWritable != want.IsWritable {
			t.Errorf("key %d: expected %+v, got %+v", i, want, got)
		}
	}

	signers := built.Signers()
	if len(signers) != 2 || signers[0] != testWallet {
		t.Errorf("expected wallet to sign twice, got %v", signers)
	}
}

func TestBuildWarnsOnDeclaredDiscriminatorMismatch(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ix := &idl.Instruction{
		Name:          "initializeUser",
		Discriminator: idl.Bytes{111, 17, 185, 250, 60, 122, 38, 254},
		Accounts:      []idl.AccountMeta{{Name: "authority", Signer: true}},
	}

	built := build(t, NewBuilder(nil).WithLogger(logger), ix, nil)

	if got := hex.EncodeToString(built.Data); got != "828b62a3cda477d6" {
		t.Errorf("expected computed discriminator, got %s", got)
	}
	if !strings.Contains(logs.String(), "declared discriminator differs") {
		t.Errorf("expected warning, got %q", logs.String())
	}
}

func TestBuildEncodesArgs(t *testing.T) {
	ix := &idl.Instruction{
		Name:     "deposit",
		Accounts: []idl.AccountMeta{{Name: "authority", Signer: true}},
		Args:     []idl.Field{{Name: "amount", Type: idl.Type{Primitive: "u64"}}},
	}

	built := build(t, NewBuilder(nil), ix, map[string]string{"amount": "1000"})

	disc := idl.InstructionDiscriminator("deposit")
	want := append(disc.Bytes(), 0xe8, 0x03, 0, 0, 0, 0, 0, 0)
	if !bytes.Equal(built.Data, want) {
		t.Errorf("expected %x, got %x", want, built.Data)
	}

	set, _ := resolver.New().Resolve(ix, testWallet, testProgram)
	if _, err := NewBuilder(nil).Build(ix, set, testProgram, nil); err == nil {
		t.Error("expected error for missing argument")
	}
}
