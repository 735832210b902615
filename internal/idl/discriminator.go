package idl

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DiscriminatorSize is the length of an Anchor discriminator.
const DiscriminatorSize = 8

// Discriminator is the 8-byte prefix identifying an instruction or account.
type Discriminator [DiscriminatorSize]byte

// String returns the hex encoding.
func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns a copy as a slice.
func (d Discriminator) Bytes() []byte {
	out := make([]byte, DiscriminatorSize)
	copy(out, d[:])
	return out
}

// Equal reports whether b holds exactly this discriminator.
func (d Discriminator) Equal(b []byte) bool {
	if len(b) != DiscriminatorSize {
		return false
	}
	return Discriminator(b) == d
}

// Matches reports whether data starts with this discriminator.
func (d Discriminator) Matches(data []byte) bool {
	return len(data) >= DiscriminatorSize && Discriminator(data[:DiscriminatorSize]) == d
}

func hashDiscriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var instructionDiscriminators sync.Map // name -> Discriminator

// InstructionDiscriminator returns sha256("global:"+name)[:8]. The name is
// used verbatim and results are memoised.
func InstructionDiscriminator(name string) Discriminator {
	if v, ok := instructionDiscriminators.Load(name); ok {
		return v.(Discriminator)
	}
	d := hashDiscriminator("global:" + name)
	instructionDiscriminators.Store(name, d)
	return d
}

// AccountDiscriminator returns sha256("account:"+name)[:8].
func AccountDiscriminator(name string) Discriminator {
	return hashDiscriminator("account:" + name)
}
