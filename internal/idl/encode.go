package idl

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/pkg/utils"
)

// ArgEncoder borsh-encodes instruction arguments given as strings, the form
// they arrive in from the command line.
type ArgEncoder struct {
	doc *Document
}

// NewArgEncoder creates an encoder resolving defined types against doc.
// doc may be nil when no defined types are used.
func NewArgEncoder(doc *Document) *ArgEncoder {
	return &ArgEncoder{doc: doc}
}

// Encode encodes every declared argument in order. Values are looked up by
// normalised argument name. A missing value encodes None for option types and
// is an error otherwise.
func (e *ArgEncoder) Encode(args []Field, values map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	for _, arg := range args {
		raw, ok := lookupValue(values, arg.Name)
		if !ok && arg.Type.Option == nil && arg.Type.COption == nil {
			return nil, anchorerrors.InvalidArgument("missing value for argument %q (%s)", arg.Name, arg.Type)
		}
		if err := e.encodeValue(enc, arg.Type, raw); err != nil {
			return nil, anchorerrors.InvalidArgument("argument %q (%s): %v", arg.Name, arg.Type, err)
		}
	}

	for name := range values {
		if !hasArg(args, name) {
			return nil, anchorerrors.InvalidArgument("unknown argument %q", name)
		}
	}
	return buf.Bytes(), nil
}

func lookupValue(values map[string]string, name string) (string, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if utils.SameName(k, name) {
			return v, true
		}
	}
	return "", false
}

func hasArg(args []Field, name string) bool {
	for _, a := range args {
		if utils.SameName(a.Name, name) {
			return true
		}
	}
	return false
}

func isNone(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none")
}

func (e *ArgEncoder) encodeValue(enc *bin.Encoder, t Type, raw string) error {
	switch {
	case t.Option != nil:
		if isNone(raw) {
			return enc.WriteOption(false)
		}
		if err := enc.WriteOption(true); err != nil {
			return err
		}
		return e.encodeValue(enc, *t.Option, raw)

	case t.COption != nil:
		if isNone(raw) {
			return enc.WriteCOption(false)
		}
		if err := enc.WriteCOption(true); err != nil {
			return err
		}
		return e.encodeValue(enc, *t.COption, raw)

	case t.Vec != nil:
		if t.Vec.Primitive == "u8" && isHex(raw) {
			b, err := decodeBytes(raw)
			if err != nil {
				return err
			}
			return enc.WriteBytes(b, true)
		}
		items := splitList(raw)
		if err := enc.WriteLength(len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if err := e.encodeValue(enc, *t.Vec, item); err != nil {
				return err
			}
		}
		return nil

	case t.Array != nil:
		if t.Array.Elem.Primitive == "u8" && isHex(raw) {
			b, err := decodeBytes(raw)
			if err != nil {
				return err
			}
			if len(b) != t.Array.Len {
				return fmt.Errorf("expected %d bytes, got %d", t.Array.Len, len(b))
			}
			return enc.WriteBytes(b, false)
		}
		items := splitList(raw)
		if len(items) != t.Array.Len {
			return fmt.Errorf("expected %d elements, got %d", t.Array.Len, len(items))
		}
		for _, item := range items {
			if err := e.encodeValue(enc, *t.Array.Elem, item); err != nil {
				return err
			}
		}
		return nil

	case t.Defined != "":
		return e.encodeDefined(enc, t.Defined, raw)

	case t.Primitive != "":
		return encodePrimitive(enc, t.Primitive, strings.TrimSpace(raw))
	}
	return fmt.Errorf("unsupported type")
}

// encodeDefined encodes a declared struct, given as a JSON object keyed by
// field name, or a unit enum, given by variant name or index.
func (e *ArgEncoder) encodeDefined(enc *bin.Encoder, name, raw string) error {
	if e.doc == nil {
		return fmt.Errorf("defined type %s without a document", name)
	}
	def, ok := e.doc.Type(name)
	if !ok {
		return fmt.Errorf("type %s is not declared", name)
	}

	switch def.Type.Kind {
	case "struct":
		return e.encodeStruct(enc, *def, raw)
	case "enum":
	default:
		return fmt.Errorf("type %s has unsupported kind %q", name, def.Type.Kind)
	}

	raw = strings.TrimSpace(raw)
	for i, v := range def.Type.Variants {
		if !utils.SameName(v.Name, raw) && strconv.Itoa(i) != raw {
			continue
		}
		if len(v.Fields) > 0 {
			return fmt.Errorf("variant %s carries fields", v.Name)
		}
		return enc.WriteUint8(uint8(i))
	}
	return fmt.Errorf("%q is not a variant of %s", raw, name)
}

func (e *ArgEncoder) encodeStruct(enc *bin.Encoder, def TypeDef, raw string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return fmt.Errorf("%s must be a JSON object: %w", def.Name, err)
	}

	values := make(map[string]string, len(obj))
	for k, v := range obj {
		s, err := jsonArg(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, k, err)
		}
		values[k] = s
	}

	for _, field := range def.Type.Fields {
		v, ok := lookupValue(values, field.Name)
		if !ok && field.Type.Option == nil && field.Type.COption == nil {
			return fmt.Errorf("%s: missing field %q", def.Name, field.Name)
		}
		if err := e.encodeValue(enc, field.Type, v); err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, field.Name, err)
		}
	}
	for k := range values {
		if !hasArg(def.Type.Fields, k) {
			return fmt.Errorf("%s: unknown field %q", def.Name, k)
		}
	}
	return nil
}

// jsonArg turns a JSON value into the string form encodeValue expects.
// Nested objects stay JSON; arrays become comma lists of scalars.
func jsonArg(v json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	case 'n':
		return "", nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", err
		}
		parts := make([]string, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) > 0 && (item[0] == '{' || item[0] == '[') {
				return "", fmt.Errorf("nested collections are not supported in lists")
			}
			s, err := jsonArg(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	}
	return string(trimmed), nil
}

func encodePrimitive(enc *bin.Encoder, kind, raw string) error {
	switch kind {
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		return enc.WriteBool(v)
	case "u8":
		v, err := strconv.ParseUint(raw, 0, 8)
		if err != nil {
			return err
		}
		return enc.WriteUint8(uint8(v))
	case "i8":
		v, err := strconv.ParseInt(raw, 0, 8)
		if err != nil {
			return err
		}
		return enc.WriteInt8(int8(v))
	case "u16":
		v, err := strconv.ParseUint(raw, 0, 16)
		if err != nil {
			return err
		}
		return enc.WriteUint16(uint16(v), binary.LittleEndian)
	case "i16":
		v, err := strconv.ParseInt(raw, 0, 16)
		if err != nil {
			return err
		}
		return enc.WriteInt16(int16(v), binary.LittleEndian)
	case "u32":
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return err
		}
		return enc.WriteUint32(uint32(v), binary.LittleEndian)
	case "i32":
		v, err := strconv.ParseInt(raw, 0, 32)
		if err != nil {
			return err
		}
		return enc.WriteInt32(int32(v), binary.LittleEndian)
	case "u64":
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return err
		}
		return enc.WriteUint64(v, binary.LittleEndian)
	case "i64":
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return err
		}
		return enc.WriteInt64(v, binary.LittleEndian)
	case "u128", "i128":
		lo, hi, err := parse128(raw, kind == "i128")
		if err != nil {
			return err
		}
		if kind == "i128" {
			return enc.WriteInt128(bin.Int128{Lo: lo, Hi: hi}, binary.LittleEndian)
		}
		return enc.WriteUint128(bin.Uint128{Lo: lo, Hi: hi}, binary.LittleEndian)
	case "f32":
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return err
		}
		return enc.WriteFloat32(float32(v), binary.LittleEndian)
	case "f64":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		return enc.WriteFloat64(v, binary.LittleEndian)
	case "string":
		return enc.WriteString(raw)
	case "bytes":
		b, err := decodeBytes(raw)
		if err != nil {
			return err
		}
		return enc.WriteBytes(b, true)
	case "pubkey", "publicKey":
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return err
		}
		return enc.WriteBytes(pk[:], false)
	}
	return fmt.Errorf("unsupported primitive %s", kind)
}

var (
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	mask64     = new(big.Int).SetUint64(^uint64(0))
)

func parse128(raw string, signed bool) (lo, hi uint64, err error) {
	v, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return 0, 0, fmt.Errorf("invalid integer %q", raw)
	}

	if signed {
		if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
			return 0, 0, fmt.Errorf("%s overflows i128", raw)
		}
		if v.Sign() < 0 {
			// two's complement
			v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
		}
	} else if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return 0, 0, fmt.Errorf("%s overflows u128", raw)
	}

	lo = new(big.Int).And(v, mask64).Uint64()
	hi = new(big.Int).Rsh(v, 64).Uint64()
	return lo, hi, nil
}

func isHex(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X")
}

// decodeBytes accepts 0x-prefixed hex or standard base64.
func decodeBytes(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if isHex(raw) {
		return hex.DecodeString(raw[2:])
	}
	return base64.StdEncoding.DecodeString(raw)
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
