package resolver

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/idl/idltest"
)

var (
	testWallet  = solana.MustPublicKeyFromBase58(idltest.Wallet)
	testProgram = solana.MustPublicKeyFromBase58(idltest.ProgramID)
)

func TestResolveInitializeUser(t *testing.T) {
	for name, fixture := range map[string]string{"modern": idltest.Checkin, "legacy": idltest.CheckinLegacy} {
		t.Run(name, func(t *testing.T) {
			doc := idltest.MustParse(t, fixture)
			ix, ok := doc.Instruction("initialize_user")
			if !ok {
				t.Fatal("expected initialize_user")
			}

			set, err := New().Resolve(ix, testWallet, testProgram)
			if err != nil {
				t.Fatalf("failed to resolve: %v", err)
			}

			if set.Len() != 3 {
				t.Fatalf("expected 3 entries, got %d", set.Len())
			}

			expected := []struct {
				address string
				rule    string
			}{
				{idltest.UserPDA, "pda"},
				{idltest.Wallet, "wallet"},
				{solana.SystemProgramID.String(), "system"},
			}
			for i, e := range set.Entries() {
				if e.Address.String() != expected[i].address {
					t.Errorf("entry %d (%s): expected %s, got %s", i, e.Role, expected[i].address, e.Address)
				}
				if e.Rule != expected[i].rule {
					t.Errorf("entry %d (%s): expected rule %s, got %s", i, e.Role, expected[i].rule, e.Rule)
				}
			}

			pda, _ := set.Entry("user_pda")
			if pda.Bump == nil || *pda.Bump != idltest.UserPDABump {
				t.Errorf("expected bump %d, got %v", idltest.UserPDABump, pda.Bump)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)
	ix, _ := doc.Instruction("checkin")
	r := New()

	first, err := r.Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	second, err := r.Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	a, _ := first.Address("user_pda")
	b, _ := second.Address("userPda")
	if a != b || a.String() != idltest.UserPDA {
		t.Errorf("expected %s twice, got %s and %s", idltest.UserPDA, a, b)
	}
}

func TestResolveOtherAuthority(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)
	ix, _ := doc.Instruction("checkin")

	wallet := solana.MustPublicKeyFromBase58("7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV")
	set, err := New().Resolve(ix, wallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	e, _ := set.Entry("user_pda")
	if e.Address.String() != "7MUCGgxnkqtDYoxRhLj1hyQBYK6WG3Fq2yC6dCm8DsNB" {
		t.Errorf("unexpected pda %s", e.Address)
	}
	if e.Bump == nil || *e.Bump != 255 {
		t.Errorf("expected bump 255, got %v", e.Bump)
	}
}

func TestResolveAliasesAndSysvars(t *testing.T) {
	ix := &idl.Instruction{
		Name: "touch",
		Accounts: []idl.AccountMeta{
			{Name: "Owner"},
			{Name: "systemProgram"},
			{Name: "rentSysvar"},
			{Name: "sysvar_clock"},
			{Name: "instructionsSysvar"},
			{Name: "oracle", Optional: true},
			{Name: "token_program", Address: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		},
	}

	set, err := New().Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	tests := []struct {
		role    string
		address solana.PublicKey
		omitted bool
	}{
		{"Owner", testWallet, false},
		{"systemProgram", solana.SystemProgramID, false},
		{"rentSysvar", solana.SysVarRentPubkey, false},
		{"sysvar_clock", solana.SysVarClockPubkey, false},
		{"instructionsSysvar", solana.SysVarInstructionsPubkey, false},
		{"oracle", solana.PublicKey{}, true},
		{"token_program", solana.TokenProgramID, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			e, ok := set.Entry(tt.role)
			if !ok {
				t.Fatalf("expected entry for %s", tt.role)
			}
			if e.Omitted != tt.omitted {
				t.Errorf("expected omitted=%v, got %v", tt.omitted, e.Omitted)
			}
			if !tt.omitted && e.Address != tt.address {
				t.Errorf("expected %s, got %s", tt.address, e.Address)
			}
		})
	}
}

func TestResolveUnavailableSysvarIsOmitted(t *testing.T) {
	ix := &idl.Instruction{Name: "tick", Accounts: []idl.AccountMeta{{Name: "clock"}}}

	set, err := New().WithSysvars(map[string]solana.PublicKey{}).Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if _, ok := set.Address("clock"); ok {
		t.Error("expected clock to be omitted")
	}
}

func TestResolveSeedFromEarlierAccount(t *testing.T) {
	ix := &idl.Instruction{
		Name: "open_vault",
		Accounts: []idl.AccountMeta{
			{Name: "authority", Signer: true},
			{Name: "user_pda", PDA: &idl.PDA{Seeds: []idl.Seed{
				{Kind: idl.SeedConst, Value: idl.Bytes("user")},
				{Kind: idl.SeedAccount, Path: "authority"},
			}}},
			{Name: "vault", PDA: &idl.PDA{Seeds: []idl.Seed{
				{Kind: idl.SeedConst, Value: idl.Bytes("vault")},
				{Kind: idl.SeedAccount, Path: "user_pda"},
			}}},
		},
	}

	set, err := New().Resolve(ix, testWallet, testProgram)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	userPDA, _ := set.Address("user_pda")
	want, _, err := solana.FindProgramAddress([][]byte{[]byte("vault"), userPDA.Bytes()}, testProgram)
	if err != nil {
		t.Fatalf("failed to derive: %v", err)
	}
	if got, _ := set.Address("vault"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		ix    *idl.Instruction
		role  string
		cause error
	}{
		{
			name: "unmapped required account",
			ix: &idl.Instruction{Name: "swap", Accounts: []idl.AccountMeta{
				{Name: "authority", Signer: true},
				{Name: "pool_state", Writable: true},
			}},
			role:  "pool_state",
			cause: ErrUnmapped,
		},
		{
			name: "arg seed",
			ix: &idl.Instruction{Name: "create", Accounts: []idl.AccountMeta{
				{Name: "market", PDA: &idl.PDA{Seeds: []idl.Seed{{Kind: idl.SeedArg, Path: "market_id"}}}},
			}},
			role:  "market",
			cause: ErrUnsupportedSeed,
		},
		{
			name: "account seed not yet resolved",
			ix: &idl.Instruction{Name: "create", Accounts: []idl.AccountMeta{
				{Name: "position", PDA: &idl.PDA{Seeds: []idl.Seed{{Kind: idl.SeedAccount, Path: "mint"}}}},
				{Name: "mint", Signer: true},
			}},
			role:  "position",
			cause: ErrUnsupportedSeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Resolve(tt.ix, testWallet, testProgram)
			if !anchorerrors.Is(err, anchorerrors.ErrAccountResolution) {
				t.Fatalf("expected ErrAccountResolution, got %v", err)
			}

			var are *anchorerrors.AccountResolutionError
			if !errors.As(err, &are) {
				t.Fatalf("expected AccountResolutionError, got %T", err)
			}
			if are.Role != tt.role {
				t.Errorf("expected role %s, got %s", tt.role, are.Role)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("expected cause %v, got %v", tt.cause, are.Cause)
			}
		})
	}
}

func TestIsReservedKeyword(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"authority", true},
		{"Authority", true},
		{"PAYER", true},
		{"wallet", true},
		{"user_pda", false},
		{"new_authority", false},
		{"users", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReservedKeyword(tt.name); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
