package idl

import (
	"fmt"
	"strings"

	"github.com/lugondev/anchorlite/pkg/log"
	"github.com/lugondev/anchorlite/pkg/utils"
)

var logParser = log.NewParser()

// ProgramError is a program error recovered from execution logs.
type ProgramError struct {
	// Code is the numeric error code, when known.
	Code *uint32
	Name string
	Msg  string

	// Declared reports whether the error matched an entry of the IDL table.
	Declared bool
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	var b strings.Builder
	if e.Name != "" {
		b.WriteString(e.Name)
	} else {
		b.WriteString("custom program error")
	}
	if e.Code != nil {
		fmt.Fprintf(&b, " (%d)", *e.Code)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// DecodeError finds the program error announced in logs and cross-references
// it with the error table: by code first, then by normalised name. An
// unmatched error is returned best effort with the name (and code, when a
// number was logged). Nil means no line announced an error.
func DecodeError(logs []string, table []ErrorDef) *ProgramError {
	line := logParser.FindError(logs)
	if line == nil {
		return nil
	}

	var code *uint32
	if line.Number != nil && *line.Number <= uint64(^uint32(0)) {
		c := uint32(*line.Number)
		code = &c
	}

	if code != nil {
		if def, ok := lookupCode(table, *code); ok {
			return declared(def)
		}
	}
	for _, def := range table {
		if utils.SameName(def.Name, line.Name) {
			return declared(def)
		}
	}

	return &ProgramError{Code: code, Name: line.Name}
}

// DecodeCode cross-references a bare numeric code, as reported by a
// transaction's InstructionError, with the error table.
func DecodeCode(code uint32, table []ErrorDef) *ProgramError {
	if def, ok := lookupCode(table, code); ok {
		return declared(def)
	}
	return &ProgramError{Code: &code}
}

// DecodeError decodes logs against the document's error table.
func (d *Document) DecodeError(logs []string) *ProgramError {
	return DecodeError(logs, d.Errors)
}

func lookupCode(table []ErrorDef, code uint32) (ErrorDef, bool) {
	for _, def := range table {
		if def.Code == code {
			return def, true
		}
	}
	return ErrorDef{}, false
}

func declared(def ErrorDef) *ProgramError {
	code := def.Code
	return &ProgramError{Code: &code, Name: def.Name, Msg: def.Msg, Declared: true}
}
