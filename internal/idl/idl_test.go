package idl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/idl/idltest"
)

func TestParseModernShape(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)

	if doc.ProgramName() != "checkin" {
		t.Errorf("expected program name checkin, got %s", doc.ProgramName())
	}
	if doc.ProgramAddress() != idltest.ProgramID {
		t.Errorf("expected address %s, got %s", idltest.ProgramID, doc.ProgramAddress())
	}

	ix, ok := doc.Instruction("initialize_user")
	if !ok {
		t.Fatal("expected initialize_user instruction")
	}
	if len(ix.Accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(ix.Accounts))
	}

	userPDA := ix.Accounts[0]
	if !userPDA.Writable || userPDA.Signer {
		t.Errorf("expected user_pda writable non-signer, got %+v", userPDA)
	}
	if userPDA.PDA == nil || len(userPDA.PDA.Seeds) != 2 {
		t.Fatalf("expected 2 pda seeds, got %+v", userPDA.PDA)
	}
	if string(userPDA.PDA.Seeds[0].Value) != "user" {
		t.Errorf("expected const seed user, got %q", userPDA.PDA.Seeds[0].Value)
	}
	if userPDA.PDA.Seeds[1].Kind != idl.SeedAccount || userPDA.PDA.Seeds[1].Path != "authority" {
		t.Errorf("unexpected account seed %+v", userPDA.PDA.Seeds[1])
	}

	if ix.Accounts[2].Address != "11111111111111111111111111111111" {
		t.Errorf("expected fixed system program address, got %s", ix.Accounts[2].Address)
	}
	if !idl.InstructionDiscriminator(ix.Name).Equal(ix.Discriminator) {
		t.Errorf("declared discriminator %v does not match computed", ix.Discriminator)
	}
}

func TestParseLegacyShape(t *testing.T) {
	doc := idltest.MustParse(t, idltest.CheckinLegacy)

	ix, ok := doc.Instruction("initializeUser")
	if !ok {
		t.Fatal("expected initializeUser instruction")
	}

	tests := []struct {
		name     string
		writable bool
		signer   bool
	}{
		{"userPda", true, false},
		{"authority", true, true},
		{"systemProgram", false, false},
	}
	for i, tt := range tests {
		acc := ix.Accounts[i]
		if acc.Name != tt.name || acc.Writable != tt.writable || acc.Signer != tt.signer {
			t.Errorf("account %d: expected %+v, got %+v", i, tt, acc)
		}
	}

	seed := ix.Accounts[0].PDA.Seeds[0]
	if string(seed.Value) != "user" {
		t.Errorf("expected string seed value decoded to bytes, got %q", seed.Value)
	}
	if seed.Type == nil || seed.Type.Primitive != "string" {
		t.Errorf("expected seed type string, got %+v", seed.Type)
	}
	if len(ix.Discriminator) != 0 {
		t.Errorf("expected no declared discriminator, got %v", ix.Discriminator)
	}
}

func TestParseCompositeAccounts(t *testing.T) {
	doc, err := idl.Parse([]byte(`{
		"name": "vault",
		"instructions": [{
			"name": "deposit",
			"accounts": [
				{"name": "payer", "isMut": true, "isSigner": true},
				{"name": "vault", "accounts": [
					{"name": "state", "isMut": true, "isSigner": false},
					{"name": "tokenAccount", "isMut": true, "isSigner": false, "isOptional": true}
				]},
				{"name": "rent", "isMut": false, "isSigner": false}
			],
			"args": [
				{"name": "amount", "type": "u64"},
				{"name": "memo", "type": {"option": "string"}},
				{"name": "path", "type": {"vec": {"defined": "Step"}}},
				{"name": "seed", "type": {"array": ["u8", 32]}}
			]
		}]
	}`))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	ix, _ := doc.Instruction("deposit")
	var names []string
	for _, acc := range ix.Accounts {
		names = append(names, acc.Name)
	}
	expected := []string{"payer", "state", "tokenAccount", "rent"}
	if len(names) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, names)
			break
		}
	}
	if !ix.Accounts[2].Optional {
		t.Error("expected tokenAccount optional")
	}

	types := []string{"u64", "Option<string>", "Vec<Step>", "[u8; 32]"}
	for i, want := range types {
		if got := ix.Args[i].Type.String(); got != want {
			t.Errorf("arg %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"instructions": [`},
		{"no instructions", `{"name": "empty", "instructions": []}`},
		{"bad seed byte", `{"instructions": [{"name": "a", "accounts": [{"name": "p", "pda": {"seeds": [{"kind": "const", "value": [300]}]}}], "args": []}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := idl.Parse([]byte(tt.data)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestInstructionLookup(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)

	tests := []struct {
		query    string
		expected string
		found    bool
	}{
		{"initialize_user", "initialize_user", true},
		{"initializeUser", "initialize_user", true},
		{"InitializeUser", "initialize_user", true},
		{"INITIALIZE_USER", "initialize_user", true},
		{"checkin", "checkin", true},
		{"close_user", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ix, ok := doc.Instruction(tt.query)
			if ok != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, ok)
			}
			if ok && ix.Name != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, ix.Name)
			}
		})
	}
}

func TestFindInitInstruction(t *testing.T) {
	for _, fixture := range []string{idltest.Checkin, idltest.CheckinLegacy} {
		doc := idltest.MustParse(t, fixture)
		ix, ok := doc.FindInitInstruction("user_pda")
		if !ok {
			t.Fatal("expected an init instruction")
		}
		if ix.Name != "initialize_user" && ix.Name != "initializeUser" {
			t.Errorf("unexpected init instruction %s", ix.Name)
		}
	}
}

func TestDiscriminators(t *testing.T) {
	tests := []struct {
		name     string
		got      idl.Discriminator
		expected string
	}{
		{"checkin", idl.InstructionDiscriminator("checkin"), "dfafa51b7b0736fc"},
		{"initialize_user", idl.InstructionDiscriminator("initialize_user"), "6f11b9fa3c7a26fe"},
		{"initializeUser", idl.InstructionDiscriminator("initializeUser"), "828b62a3cda477d6"},
		{"account UserPda", idl.AccountDiscriminator("UserPda"), "b6b390b287638ff9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.got)
			}
		})
	}

	first := idl.InstructionDiscriminator("checkin")
	second := idl.InstructionDiscriminator("checkin")
	if first != second {
		t.Error("expected identical discriminators for repeated calls")
	}

	data := append(first.Bytes(), 1, 2, 3)
	if !first.Matches(data) {
		t.Error("expected discriminator to match data prefix")
	}
	if first.Matches(data[:4]) {
		t.Error("expected short data not to match")
	}
}

func TestDecodeError(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)

	tests := []struct {
		name     string
		logs     []string
		nilOut   bool
		code     uint32
		hasCode  bool
		errName  string
		declared bool
	}{
		{
			name: "anchor error with number on the same line",
			logs: []string{
				"Program HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ invoke [1]",
				"Program log: AnchorError occurred. Error Code: InvalidAuthority. Error Number: 6000. Error Message: Invalid authority for this user PDA.",
				"Program HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ failed: custom program error: 0x1770",
			},
			code:     6000,
			hasCode:  true,
			errName:  "InvalidAuthority",
			declared: true,
		},
		{
			name: "hex number",
			logs: []string{
				"Program log: Error Code: Overflow",
				"Program log: Error Number: 0x1771",
			},
			code:     6001,
			hasCode:  true,
			errName:  "Overflow",
			declared: true,
		},
		{
			name:     "name only, normalised lookup",
			logs:     []string{"Program log: Error Code: invalid_authority"},
			code:     6000,
			hasCode:  true,
			errName:  "InvalidAuthority",
			declared: true,
		},
		{
			name:    "unknown name keeps best effort",
			logs:    []string{"Program log: Error Code: AccountNotInitialized. Error Number: 3012."},
			code:    3012,
			hasCode: true,
			errName: "AccountNotInitialized",
		},
		{
			name:    "unknown name without number",
			logs:    []string{"Program log: Error Code: ConstraintSeeds"},
			errName: "ConstraintSeeds",
		},
		{
			name:   "no error line",
			logs:   []string{"Program HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ failed: custom program error: 0x1770"},
			nilOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := doc.DecodeError(tt.logs)
			if tt.nilOut {
				if perr != nil {
					t.Errorf("expected nil, got %+v", perr)
				}
				return
			}
			if perr == nil {
				t.Fatal("expected decoded error, got nil")
			}
			if perr.Name != tt.errName {
				t.Errorf("expected name %s, got %s", tt.errName, perr.Name)
			}
			if (perr.Code != nil) != tt.hasCode {
				t.Fatalf("expected hasCode=%v, got %v", tt.hasCode, perr.Code)
			}
			if tt.hasCode && *perr.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, *perr.Code)
			}
			if perr.Declared != tt.declared {
				t.Errorf("expected declared=%v, got %v", tt.declared, perr.Declared)
			}
		})
	}
}

func TestDecodeErrorKeepsTableName(t *testing.T) {
	table := []idl.ErrorDef{
		{Code: 6000, Name: "invalidAuthority"},
		{Code: 6001, Name: "overflow"},
	}

	perr := idl.DecodeError([]string{
		"Program log: AnchorError occurred. Error Code: InvalidAuthority.",
		"Program log: Error Number: 0x1770",
	}, table)
	if perr == nil {
		t.Fatal("expected decoded error, got nil")
	}
	if perr.Name != "invalidAuthority" {
		t.Errorf("expected name invalidAuthority, got %s", perr.Name)
	}
	if perr.Code == nil || *perr.Code != 6000 {
		t.Errorf("expected code 6000, got %v", perr.Code)
	}
	if !perr.Declared {
		t.Error("expected declared error")
	}
}

func TestDecodeCode(t *testing.T) {
	doc := idltest.MustParse(t, idltest.Checkin)

	perr := idl.DecodeCode(6001, doc.Errors)
	if perr.Name != "Overflow" || !perr.Declared {
		t.Errorf("expected declared Overflow, got %+v", perr)
	}

	perr = idl.DecodeCode(42, doc.Errors)
	if perr.Declared || perr.Error() != "custom program error (42)" {
		t.Errorf("unexpected undeclared error %q", perr.Error())
	}
}

func TestLoaderHTTP(t *testing.T) {
	var cacheControl string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl = r.Header.Get("Cache-Control")
		switch r.URL.Path {
		case "/solana-idl.json":
			_, _ = w.Write([]byte(idltest.Checkin))
		case "/broken.json":
			_, _ = w.Write([]byte(`{"instructions": [`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := idl.NewLoader().WithHTTPClient(server.Client())

	doc, err := loader.Load(context.Background(), server.URL+"/solana-idl.json")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(doc.Instructions) != 2 {
		t.Errorf("expected 2 instructions, got %d", len(doc.Instructions))
	}
	if cacheControl != "no-cache" {
		t.Errorf("expected Cache-Control no-cache, got %q", cacheControl)
	}

	for _, path := range []string{"/missing.json", "/broken.json"} {
		t.Run(path, func(t *testing.T) {
			_, err := loader.Load(context.Background(), server.URL+path)
			if !anchorerrors.Is(err, anchorerrors.ErrIDLLoad) {
				t.Errorf("expected ErrIDLLoad, got %v", err)
			}
		})
	}
}

func TestLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkin.json")
	if err := os.WriteFile(path, []byte(idltest.CheckinLegacy), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	loader := idl.NewLoader()
	doc, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if doc.ProgramName() != "checkin" {
		t.Errorf("expected checkin, got %s", doc.ProgramName())
	}

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	if anchorerrors.CodeOf(err) != anchorerrors.ErrCodeIDLLoad {
		t.Errorf("expected IDL_LOAD, got %v", err)
	}
}
