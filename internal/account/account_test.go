package account

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/anchorlite/internal/idl/idltest"
	"github.com/lugondev/anchorlite/internal/solana/solanatest"
)

var (
	testProgram = solana.MustPublicKeyFromBase58(idltest.ProgramID)
	testWallet  = solana.MustPublicKeyFromBase58(idltest.Wallet)
	testUserPDA = solana.MustPublicKeyFromBase58(idltest.UserPDA)
)

func userPDAData(t *testing.T, authority solana.PublicKey, bump uint8, slot uint64, ts int64, count uint64) []byte {
	t.Helper()
	disc, err := hex.DecodeString("b6b390b287638ff9")
	if err != nil {
		t.Fatal(err)
	}
	data := append([]byte{}, disc...)
	data = append(data, authority.Bytes()...)
	data = append(data, bump)
	data = binary.LittleEndian.AppendUint64(data, slot)
	data = binary.LittleEndian.AppendUint64(data, uint64(ts))
	data = binary.LittleEndian.AppendUint64(data, count)
	return data
}

func TestDecodeUserPDA(t *testing.T) {
	data := userPDAData(t, testWallet, idltest.UserPDABump, 312_000_123, 1_760_745_600, 17)

	got, err := DecodeUserPDA(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Authority.Equals(testWallet) {
		t.Errorf("expected authority %s, got %s", testWallet, got.Authority)
	}
	if got.Bump != idltest.UserPDABump {
		t.Errorf("expected bump %d, got %d", idltest.UserPDABump, got.Bump)
	}
	if got.LastCheckinSlot != 312_000_123 {
		t.Errorf("expected slot 312000123, got %d", got.LastCheckinSlot)
	}
	if got.LastCheckinTs != 1_760_745_600 {
		t.Errorf("expected ts 1760745600, got %d", got.LastCheckinTs)
	}
	if got.Count != 17 {
		t.Errorf("expected count 17, got %d", got.Count)
	}
}

func TestDecodeUserPDAErrors(t *testing.T) {
	valid := userPDAData(t, testWallet, 253, 1, 1, 1)
	wrongDisc := append([]byte{}, valid...)
	wrongDisc[0] ^= 0xff

	tests := []struct {
		name     string
		data     []byte
		mismatch bool
	}{
		{"empty", nil, true},
		{"short discriminator", valid[:4], true},
		{"wrong discriminator", wrongDisc, true},
		{"truncated body", valid[:len(valid)-3], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUserPDA(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrDiscriminatorMismatch); got != tt.mismatch {
				t.Errorf("expected discriminator mismatch %v, got %v (%v)", tt.mismatch, got, err)
			}
		})
	}
}

func TestCheckedInOn(t *testing.T) {
	ts := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	u := UserPDA{LastCheckinTs: ts.Unix()}

	tests := []struct {
		name     string
		u        UserPDA
		at       time.Time
		expected bool
	}{
		{"same day", u, time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC), true},
		{"next day", u, time.Date(2026, 10, 19, 0, 0, 1, 0, time.UTC), false},
		{"never checked in", UserPDA{}, ts, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.u.CheckedInOn(tt.at); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFetchUserPDA(t *testing.T) {
	fake := solanatest.New()
	ctx := context.Background()

	t.Run("missing account", func(t *testing.T) {
		got, err := FetchUserPDA(ctx, fake, testProgram, testUserPDA)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("existing account", func(t *testing.T) {
		fake.SetAccount(testUserPDA, testProgram, userPDAData(t, testWallet, 253, 9, 10, 3))
		got, err := FetchUserPDA(ctx, fake, testProgram, testUserPDA)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Data.Count != 3 {
			t.Errorf("expected count 3, got %d", got.Data.Count)
		}
		if !got.Address.Equals(testUserPDA) {
			t.Errorf("expected address %s, got %s", testUserPDA, got.Address)
		}
	})

	t.Run("foreign owner", func(t *testing.T) {
		other := solana.NewWallet().PublicKey()
		fake.SetAccount(testUserPDA, other, userPDAData(t, testWallet, 253, 9, 10, 3))
		if _, err := FetchUserPDA(ctx, fake, testProgram, testUserPDA); err == nil {
			t.Error("expected error for account owned by another program")
		}
	})
}
