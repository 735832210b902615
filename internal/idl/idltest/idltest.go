// Package idltest provides IDL fixtures of the check-in program for tests.
package idltest

import (
	"testing"

	"github.com/lugondev/anchorlite/internal/idl"
)

// Fixture addresses.
const (
	ProgramID = "HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ"
	Wallet    = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

	// UserPDA is the derived ["user", Wallet] address under ProgramID.
	UserPDA     = "3Gc9MV9eVD7iZcDqfzZhpXLFHHnBc3p7CEv638ZHyVpf"
	UserPDABump = 253
)

// Checkin is the check-in program IDL in the 0.30+ shape with snake_case
// names, as emitted by anchor build.
const Checkin = `{
  "address": "HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ",
  "metadata": {"name": "checkin", "version": "0.1.0", "spec": "0.1.0"},
  "instructions": [
    {
      "name": "checkin",
      "discriminator": [223, 175, 165, 27, 123, 7, 54, 252],
      "accounts": [
        {
          "name": "user_pda",
          "writable": true,
          "pda": {"seeds": [
            {"kind": "const", "value": [117, 115, 101, 114]},
            {"kind": "account", "path": "authority"}
          ]}
        },
        {"name": "authority", "signer": true}
      ],
      "args": []
    },
    {
      "name": "initialize_user",
      "discriminator": [111, 17, 185, 250, 60, 122, 38, 254],
      "accounts": [
        {
          "name": "user_pda",
          "writable": true,
          "pda": {"seeds": [
            {"kind": "const", "value": [117, 115, 101, 114]},
            {"kind": "account", "path": "authority"}
          ]}
        },
        {"name": "authority", "writable": true, "signer": true},
        {"name": "system_program", "address": "11111111111111111111111111111111"}
      ],
      "args": []
    }
  ],
  "accounts": [
    {"name": "UserPda", "discriminator": [182, 179, 144, 178, 135, 99, 143, 249]}
  ],
  "errors": [
    {"code": 6000, "name": "InvalidAuthority", "msg": "Invalid authority for this user PDA"},
    {"code": 6001, "name": "Overflow", "msg": "Arithmetic overflow"}
  ],
  "types": [
    {
      "name": "UserPda",
      "type": {
        "kind": "struct",
        "fields": [
          {"name": "authority", "type": "pubkey"},
          {"name": "bump", "type": "u8"},
          {"name": "last_checkin_slot", "type": "u64"},
          {"name": "last_checkin_ts", "type": "i64"},
          {"name": "count", "type": "u64"}
        ]
      }
    }
  ]
}`

// CheckinLegacy is the same program in the legacy shape with camelCase
// names and string seed values.
const CheckinLegacy = `{
  "version": "0.1.0",
  "name": "checkin",
  "instructions": [
    {
      "name": "checkin",
      "accounts": [
        {
          "name": "userPda",
          "isMut": true,
          "isSigner": false,
          "pda": {"seeds": [
            {"kind": "const", "type": "string", "value": "user"},
            {"kind": "account", "type": "publicKey", "path": "authority"}
          ]}
        },
        {"name": "authority", "isMut": false, "isSigner": true}
      ],
      "args": []
    },
    {
      "name": "initializeUser",
      "accounts": [
        {
          "name": "userPda",
          "isMut": true,
          "isSigner": false,
          "pda": {"seeds": [
            {"kind": "const", "type": "string", "value": "user"},
            {"kind": "account", "type": "publicKey", "path": "authority"}
          ]}
        },
        {"name": "authority", "isMut": true, "isSigner": true},
        {"name": "systemProgram", "isMut": false, "isSigner": false}
      ],
      "args": []
    }
  ],
  "accounts": [
    {
      "name": "UserPda",
      "type": {
        "kind": "struct",
        "fields": [
          {"name": "authority", "type": "publicKey"},
          {"name": "bump", "type": "u8"},
          {"name": "lastCheckinSlot", "type": "u64"},
          {"name": "lastCheckinTs", "type": "i64"},
          {"name": "count", "type": "u64"}
        ]
      }
    }
  ],
  "errors": [
    {"code": 6000, "name": "InvalidAuthority", "msg": "Invalid authority for this user PDA"},
    {"code": 6001, "name": "Overflow", "msg": "Arithmetic overflow"}
  ]
}`

// MustParse parses an IDL fixture or fails the test.
func MustParse(t testing.TB, data string) *idl.Document {
	t.Helper()
	doc, err := idl.Parse([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse idl fixture: %v", err)
	}
	return doc
}
