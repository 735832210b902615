// Package resolver binds every account an IDL instruction declares to a
// concrete address.
//
// Binding is driven by an ordered rule table evaluated per account in
// declared order; the first matching rule decides. The default table:
//
//	wallet        signer flag or reserved role keyword -> wallet address
//	system        system program aliases               -> system program
//	sysvar        rent / clock / instructions aliases  -> sysvar (omitted if unavailable)
//	fixed         declared address                     -> that address
//	pda           declared seeds                       -> derived address
//	optional      optional account                     -> omitted
//	fail          anything else                        -> AccountResolutionError
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/anchorlite/internal/common"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/pkg/utils"
)

// ReservedKeywords are role names that always denote the connected wallet.
var ReservedKeywords = []string{"authority", "owner", "user", "payer", "signer", "wallet"}

// IsReservedKeyword reports whether name is a reserved role keyword,
// compared case-insensitively and exactly.
func IsReservedKeyword(name string) bool {
	for _, k := range ReservedKeywords {
		if strings.EqualFold(name, k) {
			return true
		}
	}
	return false
}

// Alias groups, compared after snake-case normalisation.
var (
	SystemProgramAliases = []string{"system_program", "system"}
	RentAliases          = []string{"rent", "rent_sysvar", "sysvar_rent"}
	ClockAliases         = []string{"clock", "clock_sysvar", "sysvar_clock"}
	InstructionsAliases  = []string{"instructions", "sysvar_instructions", "instructions_sysvar"}
)

// Sysvar keys.
const (
	SysvarRent         = "rent"
	SysvarClock        = "clock"
	SysvarInstructions = "instructions"
)

// DefaultSysvars maps sysvar keys to their well-known addresses.
func DefaultSysvars() map[string]solana.PublicKey {
	return map[string]solana.PublicKey{
		SysvarRent:         solana.SysVarRentPubkey,
		SysvarClock:        solana.SysVarClockPubkey,
		SysvarInstructions: solana.SysVarInstructionsPubkey,
	}
}

// ErrUnsupportedSeed is the cause reported for PDA seeds that cannot be
// evaluated without program state or instruction arguments.
var ErrUnsupportedSeed = errors.New("unsupported pda seed")

// ErrUnmapped is the cause reported when no rule binds a required account.
var ErrUnmapped = errors.New("no rule maps this account")

// Env is the input available to rules while resolving one instruction.
type Env struct {
	Wallet    solana.PublicKey
	ProgramID solana.PublicKey
	Sysvars   map[string]solana.PublicKey

	// Resolved holds the accounts bound so far, in declared order.
	Resolved *ResolvedAccountSet
}

// Binding is the outcome of a rule for one account.
type Binding struct {
	Address solana.PublicKey
	Omitted bool

	// Bump is set for derived addresses.
	Bump *uint8
}

// Rule is one row of the resolution table.
type Rule struct {
	Name   string
	Match  func(acc idl.AccountMeta, env *Env) bool
	Action func(acc idl.AccountMeta, env *Env) (Binding, error)
}

// Entry is a resolved account.
type Entry struct {
	Role    string
	Address solana.PublicKey
	Omitted bool
	Bump    *uint8

	// Rule names the rule that bound the account.
	Rule string
}

// ResolvedAccountSet is the ordered result of resolving one instruction.
type ResolvedAccountSet struct {
	entries []Entry
	byRole  map[string]int
}

func newResolvedAccountSet(capacity int) *ResolvedAccountSet {
	return &ResolvedAccountSet{
		entries: make([]Entry, 0, capacity),
		byRole:  make(map[string]int, capacity),
	}
}

func (s *ResolvedAccountSet) add(e Entry) {
	s.byRole[e.Role] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Entries returns every entry in declared order, omitted ones included.
func (s *ResolvedAccountSet) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *ResolvedAccountSet) Len() int {
	return len(s.entries)
}

// Entry returns the entry for role, matched exactly and then by
// normalised name.
func (s *ResolvedAccountSet) Entry(role string) (Entry, bool) {
	if i, ok := s.byRole[role]; ok {
		return s.entries[i], true
	}
	for _, e := range s.entries {
		if utils.SameName(e.Role, role) {
			return e, true
		}
	}
	return Entry{}, false
}

// Address returns the bound address of role. Omitted roles report false.
func (s *ResolvedAccountSet) Address(role string) (solana.PublicKey, bool) {
	e, ok := s.Entry(role)
	if !ok || e.Omitted {
		return solana.PublicKey{}, false
	}
	return e.Address, true
}

// Resolver applies a rule table to instruction accounts.
type Resolver struct {
	common.LoggerMixin
	rules   []Rule
	sysvars map[string]solana.PublicKey
}

// New creates a resolver with the default rule table.
func New() *Resolver {
	return &Resolver{
		LoggerMixin: common.NewLoggerMixin(),
		rules:       DefaultRules(),
		sysvars:     DefaultSysvars(),
	}
}

// WithLogger sets the logger.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.SetLogger(logger)
	return r
}

// WithRules replaces the rule table.
func (r *Resolver) WithRules(rules []Rule) *Resolver {
	r.rules = rules
	return r
}

// WithSysvars replaces the available sysvar addresses. A sysvar missing from
// the map is treated as unavailable and its account is omitted.
func (r *Resolver) WithSysvars(sysvars map[string]solana.PublicKey) *Resolver {
	r.sysvars = sysvars
	return r
}

// Rules returns the rule table.
func (r *Resolver) Rules() []Rule {
	return r.rules
}

// Resolve binds every declared account of ix. The returned set is built
// fresh for each call.
func (r *Resolver) Resolve(ix *idl.Instruction, wallet, programID solana.PublicKey) (*ResolvedAccountSet, error) {
	env := &Env{
		Wallet:    wallet,
		ProgramID: programID,
		Sysvars:   r.sysvars,
		Resolved:  newResolvedAccountSet(len(ix.Accounts)),
	}

	for _, acc := range ix.Accounts {
		rule, ok := r.match(acc, env)
		if !ok {
			return nil, &anchorerrors.AccountResolutionError{Role: acc.Name, Cause: ErrUnmapped}
		}

		b, err := rule.Action(acc, env)
		if err != nil {
			var are *anchorerrors.AccountResolutionError
			if errors.As(err, &are) {
				return nil, err
			}
			return nil, &anchorerrors.AccountResolutionError{Role: acc.Name, Cause: err}
		}

		env.Resolved.add(Entry{
			Role:    acc.Name,
			Address: b.Address,
			Omitted: b.Omitted,
			Bump:    b.Bump,
			Rule:    rule.Name,
		})

		if b.Omitted {
			r.GetLogger().Debug("account omitted", "instruction", ix.Name, "role", acc.Name, "rule", rule.Name)
		} else {
			r.GetLogger().Debug("account resolved", "instruction", ix.Name, "role", acc.Name, "rule", rule.Name, "address", b.Address.String())
		}
	}

	return env.Resolved, nil
}

func (r *Resolver) match(acc idl.AccountMeta, env *Env) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Match(acc, env) {
			return rule, true
		}
	}
	return Rule{}, false
}

// DefaultRules returns the standard resolution table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "wallet",
			Match: func(acc idl.AccountMeta, _ *Env) bool {
				return acc.Signer || IsReservedKeyword(acc.Name)
			},
			Action: func(_ idl.AccountMeta, env *Env) (Binding, error) {
				return Binding{Address: env.Wallet}, nil
			},
		},
		{
			Name: "system",
			Match: func(acc idl.AccountMeta, _ *Env) bool {
				return utils.SameNameAny(acc.Name, SystemProgramAliases...)
			},
			Action: func(_ idl.AccountMeta, _ *Env) (Binding, error) {
				return Binding{Address: solana.SystemProgramID}, nil
			},
		},
		sysvarRule(SysvarRent, RentAliases),
		sysvarRule(SysvarClock, ClockAliases),
		sysvarRule(SysvarInstructions, InstructionsAliases),
		{
			Name: "fixed",
			Match: func(acc idl.AccountMeta, _ *Env) bool {
				return acc.Address != ""
			},
			Action: func(acc idl.AccountMeta, _ *Env) (Binding, error) {
				pk, err := solana.PublicKeyFromBase58(acc.Address)
				if err != nil {
					return Binding{}, fmt.Errorf("invalid declared address %q: %w", acc.Address, err)
				}
				return Binding{Address: pk}, nil
			},
		},
		{
			Name: "pda",
			Match: func(acc idl.AccountMeta, _ *Env) bool {
				return acc.PDA != nil && len(acc.PDA.Seeds) > 0
			},
			Action: derivePDA,
		},
		{
			Name: "optional",
			Match: func(acc idl.AccountMeta, _ *Env) bool {
				return acc.Optional
			},
			Action: func(_ idl.AccountMeta, _ *Env) (Binding, error) {
				return Binding{Omitted: true}, nil
			},
		},
	}
}

func sysvarRule(key string, aliases []string) Rule {
	return Rule{
		Name: "sysvar_" + key,
		Match: func(acc idl.AccountMeta, _ *Env) bool {
			return utils.SameNameAny(acc.Name, aliases...)
		},
		Action: func(_ idl.AccountMeta, env *Env) (Binding, error) {
			pk, ok := env.Sysvars[key]
			if !ok || pk.IsZero() {
				return Binding{Omitted: true}, nil
			}
			return Binding{Address: pk}, nil
		},
	}
}

func derivePDA(acc idl.AccountMeta, env *Env) (Binding, error) {
	seeds := make([][]byte, 0, len(acc.PDA.Seeds))
	for _, seed := range acc.PDA.Seeds {
		b, err := seedBytes(seed, env)
		if err != nil {
			return Binding{}, err
		}
		seeds = append(seeds, b)
	}

	programID := env.ProgramID
	if p := acc.PDA.Program; p != nil {
		switch {
		case p.Kind == idl.SeedConst && len(p.Value) == solana.PublicKeyLength:
			programID = solana.PublicKeyFromBytes(p.Value)
		default:
			return Binding{}, fmt.Errorf("%w: program seed %s", ErrUnsupportedSeed, describeSeed(*p))
		}
	}

	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Binding{}, fmt.Errorf("derive address: %w", err)
	}
	return Binding{Address: addr, Bump: &bump}, nil
}

func seedBytes(seed idl.Seed, env *Env) ([]byte, error) {
	switch seed.Kind {
	case idl.SeedConst:
		return []byte(seed.Value), nil
	case idl.SeedAccount:
		if IsReservedKeyword(seed.Path) {
			return env.Wallet.Bytes(), nil
		}
		if addr, ok := env.Resolved.Address(seed.Path); ok {
			return addr.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSeed, describeSeed(seed))
}

func describeSeed(seed idl.Seed) string {
	switch {
	case seed.Path != "":
		return fmt.Sprintf("kind=%s path=%s", seed.Kind, seed.Path)
	case len(seed.Value) > 0:
		return fmt.Sprintf("kind=%s value=%x", seed.Kind, []byte(seed.Value))
	}
	return "kind=" + seed.Kind
}
