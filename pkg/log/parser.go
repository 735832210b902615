// Package log provides utilities for parsing Solana transaction and simulation logs.
//
// The parser classifies each line ("Program X invoke [N]", "Program log: ...",
// "Program data: ...", ...) and extracts the program error announced by
// Anchor-style programs:
//
//	Program log: AnchorError occurred. Error Code: InvalidAuthority. Error Number: 6000. Error Message: ...
//	Program HDNJ... failed: custom program error: 0x1770
//
// Example usage:
//
//	parser := log.NewParser()
//	if perr := parser.FindError(simulationLogs); perr != nil {
//	    fmt.Println(perr.Name, perr.Number)
//	}
package log

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
)

// LogType represents the type of a log message.
type LogType int

const (
	// LogTypeUnknown represents an unrecognized log message.
	LogTypeUnknown LogType = iota
	// LogTypeInvoke represents a "Program X invoke [N]" message.
	LogTypeInvoke
	// LogTypeSuccess represents a "Program X success" message.
	LogTypeSuccess
	// LogTypeFailed represents a "Program X failed: ..." message.
	LogTypeFailed
	// LogTypeData represents a "Program data: BASE64" message.
	LogTypeData
	// LogTypeLog represents a "Program log: MESSAGE" message.
	LogTypeLog
	// LogTypeComputeUnits represents a compute units consumed message.
	LogTypeComputeUnits
)

// String returns the string representation of LogType.
func (lt LogType) String() string {
	switch lt {
	case LogTypeInvoke:
		return "Invoke"
	case LogTypeSuccess:
		return "Success"
	case LogTypeFailed:
		return "Failed"
	case LogTypeData:
		return "Data"
	case LogTypeLog:
		return "Log"
	case LogTypeComputeUnits:
		return "ComputeUnits"
	default:
		return "Unknown"
	}
}

// ParsedLog represents a parsed log message with its type and extracted data.
type ParsedLog struct {
	// Type is the type of the log message.
	Type LogType

	// StackHeight is the call stack depth (1-indexed).
	// Only relevant for Invoke logs.
	StackHeight int

	// ProgramID is the program that produced this log.
	ProgramID string

	// Data is the decoded data from "Program data:" messages.
	Data []byte

	// Message is the text from "Program log:" messages, or the failure
	// reason of a "Program X failed:" message.
	Message string

	// ComputeUnits is the number of compute units consumed.
	ComputeUnits *uint64

	// RawLog is the original log message.
	RawLog string
}

// ProgramErrorLine is the program error announced in a set of log lines.
type ProgramErrorLine struct {
	// Name is the error name token following "Error Code:". Empty when only
	// a numeric code was found.
	Name string

	// Number is the numeric error code, when one was announced.
	Number *uint64

	// RawLog is the line that announced the error.
	RawLog string
}

// LogParser parses Solana transaction logs.
type LogParser struct {
	patterns *logPatterns
}

type logPatterns struct {
	invoke       *regexp.Regexp
	success      *regexp.Regexp
	failed       *regexp.Regexp
	data         *regexp.Regexp
	log          *regexp.Regexp
	computeUnits *regexp.Regexp
	errorCode    *regexp.Regexp
	errorNumber  *regexp.Regexp
	customError  *regexp.Regexp
}

// NewParser creates a new LogParser.
func NewParser() *LogParser {
	return &LogParser{
		patterns: &logPatterns{
			invoke:       regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]`),
			success:      regexp.MustCompile(`^Program (\S+) success`),
			failed:       regexp.MustCompile(`^Program (\S+) failed:?\s*(.*)$`),
			data:         regexp.MustCompile(`^Program data: (.+)$`),
			log:          regexp.MustCompile(`^Program log: (.+)$`),
			computeUnits: regexp.MustCompile(`consumed (\d+) of \d+ compute units`),
			errorCode:    regexp.MustCompile(`(?i)Error Code:\s*([A-Za-z0-9_]+)`),
			errorNumber:  regexp.MustCompile(`(?i)Error Number:\s*(0x[0-9a-fA-F]+|\d+)`),
			customError:  regexp.MustCompile(`(?i)custom program error:\s*(0x[0-9a-fA-F]+|\d+)`),
		},
	}
}

// Parse parses a single log message and returns a ParsedLog.
func (p *LogParser) Parse(logMessage string) *ParsedLog {
	result := &ParsedLog{
		Type:   LogTypeUnknown,
		RawLog: logMessage,
	}

	if matches := p.patterns.invoke.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeInvoke
		result.ProgramID = matches[1]
		result.StackHeight, _ = strconv.Atoi(matches[2])
		return result
	}

	if matches := p.patterns.success.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeSuccess
		result.ProgramID = matches[1]
		return result
	}

	if matches := p.patterns.failed.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeFailed
		result.ProgramID = matches[1]
		result.Message = strings.TrimSpace(matches[2])
		return result
	}

	if matches := p.patterns.data.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeData
		if decoded, err := base64.StdEncoding.DecodeString(matches[1]); err == nil {
			result.Data = decoded
		}
		return result
	}

	if matches := p.patterns.log.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeLog
		result.Message = matches[1]
		return result
	}

	if matches := p.patterns.computeUnits.FindStringSubmatch(logMessage); matches != nil {
		result.Type = LogTypeComputeUnits
		if cu, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
			result.ComputeUnits = &cu
		}
		return result
	}

	return result
}

// ParseAll parses all log messages and returns a slice of ParsedLog.
func (p *LogParser) ParseAll(logMessages []string) []*ParsedLog {
	results := make([]*ParsedLog, 0, len(logMessages))
	for _, log := range logMessages {
		results = append(results, p.Parse(log))
	}
	return results
}

// ExtractProgramLogs extracts all "Program log:" messages.
func (p *LogParser) ExtractProgramLogs(logMessages []string) []string {
	var logs []string
	for _, log := range logMessages {
		if parsed := p.Parse(log); parsed.Type == LogTypeLog {
			logs = append(logs, parsed.Message)
		}
	}
	return logs
}

// ComputeUnits sums the units reported by top-level invocations. Inner
// invocations are already counted by their caller. ok is false when no
// top-level "consumed N of M compute units" line was found.
func (p *LogParser) ComputeUnits(logMessages []string) (total uint64, ok bool) {
	depth := 0
	for _, parsed := range p.ParseAll(logMessages) {
		switch parsed.Type {
		case LogTypeInvoke:
			depth = parsed.StackHeight
		case LogTypeSuccess, LogTypeFailed:
			if depth > 0 {
				depth--
			}
		case LogTypeComputeUnits:
			if depth == 1 && parsed.ComputeUnits != nil {
				total += *parsed.ComputeUnits
				ok = true
			}
		}
	}
	return total, ok
}

// FindError returns the program error announced in the logs, or nil.
//
// The first line carrying "Error Code:" wins. Its numeric code is taken from
// an "Error Number:" on the same line, then from any other line announcing
// one, then from a "custom program error:" failure line. When no line carries
// "Error Code:", nil is returned even if a bare custom program error exists;
// callers that want the bare number use FindCustomErrorNumber.
func (p *LogParser) FindError(logMessages []string) *ProgramErrorLine {
	for i, line := range logMessages {
		matches := p.patterns.errorCode.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		result := &ProgramErrorLine{Name: matches[1], RawLog: line}
		if n, ok := p.errorNumberIn(line); ok {
			result.Number = &n
			return result
		}
		for j, other := range logMessages {
			if j == i {
				continue
			}
			if n, ok := p.errorNumberIn(other); ok {
				result.Number = &n
				return result
			}
		}
		if n, ok := p.FindCustomErrorNumber(logMessages); ok {
			result.Number = &n
		}
		return result
	}
	return nil
}

// FindCustomErrorNumber returns the code of the first
// "custom program error: 0x.." failure line.
func (p *LogParser) FindCustomErrorNumber(logMessages []string) (uint64, bool) {
	for _, line := range logMessages {
		if matches := p.patterns.customError.FindStringSubmatch(line); matches != nil {
			if n, err := parseNumber(matches[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func (p *LogParser) errorNumberIn(line string) (uint64, bool) {
	matches := p.patterns.errorNumber.FindStringSubmatch(line)
	if matches == nil {
		return 0, false
	}
	n, err := parseNumber(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseNumber accepts "0x"-prefixed hexadecimal or plain decimal.
func parseNumber(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
