// Package solanatest provides an in-memory RPC fake for tests.
package solanatest

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	solanaclient "github.com/lugondev/anchorlite/internal/solana"
)

// SimulateCall records one Simulate request.
type SimulateCall struct {
	Tx   []byte
	Opts solanaclient.SimulateOpts
}

// FakeRPC answers the RPC calls of the transaction flow from fields set by
// the test. Sequences are consumed one entry per call; once empty the
// matching default field is returned.
type FakeRPC struct {
	mu sync.Mutex

	Checkpoint    solanaclient.Checkpoint
	CheckpointErr error
	BlockhashReqs []rpc.CommitmentType

	SimSeq   []*solanaclient.SimulationValue
	SimValue *solanaclient.SimulationValue
	SimErr   error
	SimCalls []SimulateCall

	SendErr  error
	Sent     [][]byte
	SendOpts []rpc.TransactionOpts
	// OnSend runs after a transaction is accepted.
	OnSend func(tx *solana.Transaction)

	StatusSeq []*rpc.SignatureStatusesResult
	Status    *rpc.SignatureStatusesResult
	StatusErr error

	HeightSeq []uint64
	Height    uint64

	Accounts     map[solana.PublicKey]*rpc.Account
	AccountErr   error
	AccountReqs  []solana.PublicKey
	Transactions map[solana.Signature]*solanaclient.TransactionRecord
}

// New returns a fake whose checkpoint is valid up to height 1000 and whose
// transactions confirm immediately.
func New() *FakeRPC {
	return &FakeRPC{
		Checkpoint: solanaclient.Checkpoint{
			Blockhash:            solana.Hash{7, 7, 7},
			LastValidBlockHeight: 1000,
		},
		Status: &rpc.SignatureStatusesResult{
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
		},
		Height:       1,
		Accounts:     make(map[solana.PublicKey]*rpc.Account),
		Transactions: make(map[solana.Signature]*solanaclient.TransactionRecord),
	}
}

func (f *FakeRPC) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solanaclient.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BlockhashReqs = append(f.BlockhashReqs, commitment)
	return f.Checkpoint, f.CheckpointErr
}

func (f *FakeRPC) Simulate(ctx context.Context, tx []byte, opts solanaclient.SimulateOpts) (*solanaclient.SimulationValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SimCalls = append(f.SimCalls, SimulateCall{Tx: append([]byte(nil), tx...), Opts: opts})
	if f.SimErr != nil {
		return nil, f.SimErr
	}
	if len(f.SimSeq) > 0 {
		v := f.SimSeq[0]
		f.SimSeq = f.SimSeq[1:]
		return v, nil
	}
	if f.SimValue != nil {
		return f.SimValue, nil
	}
	return &solanaclient.SimulationValue{Logs: []string{"Program log: ok"}}, nil
}

func (f *FakeRPC) SendRaw(ctx context.Context, raw []byte, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	if f.SendErr != nil {
		f.mu.Unlock()
		return solana.Signature{}, f.SendErr
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		f.mu.Unlock()
		return solana.Signature{}, err
	}
	f.Sent = append(f.Sent, append([]byte(nil), raw...))
	f.SendOpts = append(f.SendOpts, opts)
	hook := f.OnSend
	f.mu.Unlock()

	if hook != nil {
		hook(tx)
	}
	return tx.Signatures[0], nil
}

func (f *FakeRPC) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	if len(f.StatusSeq) > 0 {
		s := f.StatusSeq[0]
		f.StatusSeq = f.StatusSeq[1:]
		return s, nil
	}
	return f.Status, nil
}

func (f *FakeRPC) BlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.HeightSeq) > 0 {
		h := f.HeightSeq[0]
		f.HeightSeq = f.HeightSeq[1:]
		return h, nil
	}
	return f.Height, nil
}

func (f *FakeRPC) AccountInfo(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*rpc.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AccountReqs = append(f.AccountReqs, pubkey)
	if f.AccountErr != nil {
		return nil, f.AccountErr
	}
	acc, ok := f.Accounts[pubkey]
	if !ok {
		return nil, solanaclient.ErrNotFound
	}
	return acc, nil
}

func (f *FakeRPC) Transaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*solanaclient.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Transactions[sig]
	if !ok {
		return nil, solanaclient.ErrNotFound
	}
	return rec, nil
}

// SetAccount registers an existing account at pubkey owned by owner.
func (f *FakeRPC) SetAccount(pubkey, owner solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[pubkey] = &rpc.Account{
		Lamports: 1_000_000,
		Owner:    owner,
		Data:     rpc.DataBytesOrJSONFromBytes(data),
	}
}

// SetTransaction registers the on-chain record returned for sig.
func (f *FakeRPC) SetTransaction(sig solana.Signature, rec *solanaclient.TransactionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Transactions[sig] = rec
}

// SentTransactions parses every broadcast transaction.
func (f *FakeRPC) SentTransactions() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*solana.Transaction, 0, len(f.Sent))
	for _, raw := range f.Sent {
		tx, err := solana.TransactionFromBytes(raw)
		if err == nil {
			out = append(out, tx)
		}
	}
	return out
}

// SimulateCount returns the number of Simulate calls.
func (f *FakeRPC) SimulateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SimCalls)
}
