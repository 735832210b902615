package account

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// UserPDAName is the account type name of the per-wallet check-in state.
const UserPDAName = "UserPda"

// UserPDA is the per-wallet check-in state.
type UserPDA struct {
	Authority       solana.PublicKey
	Bump            uint8
	LastCheckinSlot uint64
	LastCheckinTs   int64
	Count           uint64
}

// LastCheckin returns the time of the latest check-in, or the zero time when
// the wallet never checked in.
func (u UserPDA) LastCheckin() time.Time {
	if u.LastCheckinTs == 0 {
		return time.Time{}
	}
	return time.Unix(u.LastCheckinTs, 0).UTC()
}

// CheckedInOn reports whether the latest check-in happened on the UTC day of t.
func (u UserPDA) CheckedInOn(t time.Time) bool {
	last := u.LastCheckin()
	if last.IsZero() {
		return false
	}
	y1, m1, d1 := last.Date()
	y2, m2, d2 := t.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DecodeUserPDA decodes raw user PDA account data, discriminator included.
func DecodeUserPDA(data []byte) (UserPDA, error) {
	return NewProgramAccountDecoder[UserPDA](solana.PublicKey{}, UserPDAName).Decode(data)
}

// FetchUserPDA reads the user PDA at address. A missing account returns nil.
func FetchUserPDA(ctx context.Context, r Reader, programID, address solana.PublicKey) (*DecodedAccount[UserPDA], error) {
	return Fetch(ctx, r, NewProgramAccountDecoder[UserPDA](programID, UserPDAName), address, rpc.CommitmentConfirmed)
}
