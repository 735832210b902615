// Package idl loads Anchor IDL documents and derives everything the
// transaction flow needs from them: instruction lookup, discriminators,
// argument encoding and program error decoding.
//
// Both IDL shapes in the wild are accepted. The legacy shape marks accounts
// with isMut/isSigner/isOptional and gives const seeds as strings; the 0.30+
// shape uses writable/signer/optional, byte-array seed values, explicit
// discriminators and a top-level address.
package idl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lugondev/anchorlite/pkg/utils"
)

// Document is a parsed IDL. It is not modified after Load returns.
type Document struct {
	Address      string        `json:"address,omitempty"`
	Version      string        `json:"version,omitempty"`
	Name         string        `json:"name,omitempty"`
	Metadata     Metadata      `json:"metadata"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []AccountDef  `json:"accounts,omitempty"`
	Errors       []ErrorDef    `json:"errors,omitempty"`
	Types        []TypeDef     `json:"types,omitempty"`
}

// Metadata contains program metadata.
type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Spec    string `json:"spec,omitempty"`
	Address string `json:"address,omitempty"`
}

// ProgramName returns the program name from either IDL shape.
func (d *Document) ProgramName() string {
	if d.Metadata.Name != "" {
		return d.Metadata.Name
	}
	return d.Name
}

// ProgramAddress returns the declared program address, if any.
func (d *Document) ProgramAddress() string {
	if d.Address != "" {
		return d.Address
	}
	return d.Metadata.Address
}

// Instruction finds an instruction by exact name, then by case-insensitive
// or snake-normalised name.
func (d *Document) Instruction(name string) (*Instruction, bool) {
	for i := range d.Instructions {
		if d.Instructions[i].Name == name {
			return &d.Instructions[i], true
		}
	}
	for i := range d.Instructions {
		if strings.EqualFold(d.Instructions[i].Name, name) || utils.SameName(d.Instructions[i].Name, name) {
			return &d.Instructions[i], true
		}
	}
	return nil, false
}

// Account finds an account type definition by normalised name.
func (d *Document) Account(name string) (*AccountDef, bool) {
	for i := range d.Accounts {
		if utils.SameName(d.Accounts[i].Name, name) {
			return &d.Accounts[i], true
		}
	}
	return nil, false
}

// Type finds a type definition by normalised name.
func (d *Document) Type(name string) (*TypeDef, bool) {
	for i := range d.Types {
		if utils.SameName(d.Types[i].Name, name) {
			return &d.Types[i], true
		}
	}
	return nil, false
}

// FindInitInstruction returns the first instruction whose name contains
// "init" and which declares an account named like role.
func (d *Document) FindInitInstruction(role string) (*Instruction, bool) {
	for i := range d.Instructions {
		ix := &d.Instructions[i]
		if !strings.Contains(strings.ToLower(ix.Name), "init") {
			continue
		}
		for _, acc := range ix.Accounts {
			if utils.SameName(acc.Name, role) {
				return ix, true
			}
		}
	}
	return nil, false
}

// Instruction describes one program instruction.
type Instruction struct {
	Name          string        `json:"name"`
	Docs          []string      `json:"docs,omitempty"`
	Discriminator Bytes         `json:"discriminator,omitempty"`
	Accounts      []AccountMeta `json:"accounts"`
	Args          []Field       `json:"args"`
}

// UnmarshalJSON flattens legacy composite account groups into the flat
// declared order.
func (ix *Instruction) UnmarshalJSON(data []byte) error {
	type plain Instruction
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*ix = Instruction(raw)
	ix.Accounts = flattenAccounts(ix.Accounts)
	return nil
}

func flattenAccounts(in []AccountMeta) []AccountMeta {
	out := make([]AccountMeta, 0, len(in))
	for _, acc := range in {
		if len(acc.Group) > 0 {
			out = append(out, flattenAccounts(acc.Group)...)
			continue
		}
		out = append(out, acc)
	}
	return out
}

// AccountMeta is one declared account of an instruction.
type AccountMeta struct {
	Name     string
	Docs     []string
	Writable bool
	Signer   bool
	Optional bool
	Address  string
	PDA      *PDA

	// Group holds the members of a legacy composite account.
	Group []AccountMeta
}

type accountMetaJSON struct {
	Name       string        `json:"name"`
	Docs       []string      `json:"docs,omitempty"`
	Writable   *bool         `json:"writable,omitempty"`
	Signer     *bool         `json:"signer,omitempty"`
	Optional   *bool         `json:"optional,omitempty"`
	IsMut      *bool         `json:"isMut,omitempty"`
	IsSigner   *bool         `json:"isSigner,omitempty"`
	IsOptional *bool         `json:"isOptional,omitempty"`
	Address    string        `json:"address,omitempty"`
	PDA        *PDA          `json:"pda,omitempty"`
	Accounts   []AccountMeta `json:"accounts,omitempty"`
}

// UnmarshalJSON accepts both the legacy and the 0.30+ flag names.
func (a *AccountMeta) UnmarshalJSON(data []byte) error {
	var raw accountMetaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AccountMeta{
		Name:     raw.Name,
		Docs:     raw.Docs,
		Writable: firstFlag(raw.Writable, raw.IsMut),
		Signer:   firstFlag(raw.Signer, raw.IsSigner),
		Optional: firstFlag(raw.Optional, raw.IsOptional),
		Address:  raw.Address,
		PDA:      raw.PDA,
		Group:    raw.Accounts,
	}
	return nil
}

// MarshalJSON writes the 0.30+ shape.
func (a AccountMeta) MarshalJSON() ([]byte, error) {
	raw := accountMetaJSON{
		Name:     a.Name,
		Docs:     a.Docs,
		Address:  a.Address,
		PDA:      a.PDA,
		Accounts: a.Group,
	}
	if a.Writable {
		raw.Writable = &a.Writable
	}
	if a.Signer {
		raw.Signer = &a.Signer
	}
	if a.Optional {
		raw.Optional = &a.Optional
	}
	return json.Marshal(raw)
}

func firstFlag(flags ...*bool) bool {
	for _, f := range flags {
		if f != nil {
			return *f
		}
	}
	return false
}

// PDA is a derived-address declaration.
type PDA struct {
	Seeds   []Seed `json:"seeds"`
	Program *Seed  `json:"program,omitempty"`
}

// Seed kinds.
const (
	SeedConst   = "const"
	SeedAccount = "account"
	SeedArg     = "arg"
)

// Seed is one PDA seed.
type Seed struct {
	Kind    string `json:"kind"`
	Type    *Type  `json:"type,omitempty"`
	Value   Bytes  `json:"value,omitempty"`
	Path    string `json:"path,omitempty"`
	Account string `json:"account,omitempty"`
}

// Bytes decodes from a JSON array of byte values or from a string, whose
// UTF-8 bytes are taken.
type Bytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bytes(s)
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("byte value must be a string or an array of bytes: %w", err)
	}
	out := make(Bytes, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d out of range at index %d", n, i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// MarshalJSON writes an array of numbers rather than base64.
func (b Bytes) MarshalJSON() ([]byte, error) {
	nums := make([]int, len(b))
	for i, v := range b {
		nums[i] = int(v)
	}
	return json.Marshal(nums)
}

// AccountDef is an account type declaration.
type AccountDef struct {
	Name          string       `json:"name"`
	Discriminator Bytes        `json:"discriminator,omitempty"`
	Type          *TypeDefBody `json:"type,omitempty"`
}

// ErrorDef is one entry of the program error table.
type ErrorDef struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg,omitempty"`
}

// TypeDef is a named type declaration.
type TypeDef struct {
	Name string      `json:"name"`
	Docs []string    `json:"docs,omitempty"`
	Type TypeDefBody `json:"type"`
}

// TypeDefBody is the body of a struct or enum declaration.
type TypeDefBody struct {
	Kind     string    `json:"kind"` // struct or enum
	Fields   []Field   `json:"fields,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// Variant is an enum variant.
type Variant struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

// Field is a named, typed value: an instruction argument or a struct field.
type Field struct {
	Name string   `json:"name"`
	Docs []string `json:"docs,omitempty"`
	Type Type     `json:"type"`
}

// Type is an IDL type expression. Exactly one of the fields is set.
type Type struct {
	// Primitive names a primitive type such as "u64", "pubkey" or "string".
	Primitive string

	Option  *Type
	COption *Type
	Vec     *Type
	Array   *ArrayType
	Defined string
}

// ArrayType is a fixed-length array.
type ArrayType struct {
	Elem *Type
	Len  int
}

// UnmarshalJSON accepts a primitive name or a composite object. "defined"
// may be a bare name (legacy) or an object with a name (0.30+).
func (t *Type) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Primitive)
	}

	var raw struct {
		Option  *Type             `json:"option"`
		COption *Type             `json:"coption"`
		Vec     *Type             `json:"vec"`
		Array   []json.RawMessage `json:"array"`
		Defined json.RawMessage   `json:"defined"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid type %s: %w", string(data), err)
	}

	*t = Type{Option: raw.Option, COption: raw.COption, Vec: raw.Vec}

	if raw.Array != nil {
		if len(raw.Array) != 2 {
			return fmt.Errorf("array type must be [type, len], got %s", string(data))
		}
		var elem Type
		if err := json.Unmarshal(raw.Array[0], &elem); err != nil {
			return err
		}
		var n int
		if err := json.Unmarshal(raw.Array[1], &n); err != nil {
			return fmt.Errorf("array length: %w", err)
		}
		t.Array = &ArrayType{Elem: &elem, Len: n}
	}

	if len(raw.Defined) > 0 {
		if raw.Defined[0] == '"' {
			if err := json.Unmarshal(raw.Defined, &t.Defined); err != nil {
				return err
			}
		} else {
			var named struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw.Defined, &named); err != nil {
				return err
			}
			t.Defined = named.Name
		}
	}
	return nil
}

// MarshalJSON writes the 0.30+ shape.
func (t Type) MarshalJSON() ([]byte, error) {
	switch {
	case t.Primitive != "":
		return json.Marshal(t.Primitive)
	case t.Option != nil:
		return json.Marshal(map[string]*Type{"option": t.Option})
	case t.COption != nil:
		return json.Marshal(map[string]*Type{"coption": t.COption})
	case t.Vec != nil:
		return json.Marshal(map[string]*Type{"vec": t.Vec})
	case t.Array != nil:
		return json.Marshal(map[string][]any{"array": {t.Array.Elem, t.Array.Len}})
	case t.Defined != "":
		return json.Marshal(map[string]map[string]string{"defined": {"name": t.Defined}})
	}
	return []byte("null"), nil
}

// String renders the type in Rust-like notation.
func (t Type) String() string {
	switch {
	case t.Primitive != "":
		return t.Primitive
	case t.Option != nil:
		return "Option<" + t.Option.String() + ">"
	case t.COption != nil:
		return "COption<" + t.COption.String() + ">"
	case t.Vec != nil:
		return "Vec<" + t.Vec.String() + ">"
	case t.Array != nil:
		return fmt.Sprintf("[%s; %d]", t.Array.Elem.String(), t.Array.Len)
	case t.Defined != "":
		return t.Defined
	}
	return "unknown"
}
