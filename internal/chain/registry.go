package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/storage"
)

// ChainChanged is delivered to subscribers after every Select.
type ChainChanged struct {
	// Key is the key passed to Select, even when it was not recognised.
	Key string
}

// Context is an immutable snapshot of the selected non-EVM chain, threaded
// through the transaction flow instead of reading the registry directly.
type Context struct {
	Key          string
	Cluster      string
	Endpoint     string
	ExplorerBase string
	ProgramID    string
	IDLPath      string
}

// ExplorerTxLink returns the explorer URL for a signature.
func (c Context) ExplorerTxLink(sig string) string {
	return TxLink(c.ExplorerBase, sig)
}

// Registry holds the current chain selection.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
	defaultKey  string
	selections  storage.SelectionRepository
	logger      *slog.Logger

	// selectMu orders Select calls end to end, notifications included.
	selectMu sync.Mutex

	mu      sync.RWMutex
	current Descriptor

	subMu       sync.Mutex
	subscribers map[int]func(ChainChanged)
	nextSubID   int
}

// NewRegistry creates a registry whose current chain is defaultKey. The
// default must be an EVM descriptor.
func NewRegistry(descriptors []Descriptor, defaultKey string, selections storage.SelectionRepository) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]Descriptor, len(descriptors)),
		defaultKey:  defaultKey,
		selections:  selections,
		logger:      slog.Default(),
		subscribers: make(map[int]func(ChainChanged)),
	}

	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.descriptors[d.Key]; dup {
			return nil, fmt.Errorf("duplicate chain key %q", d.Key)
		}
		r.descriptors[d.Key] = d.clone()
		r.order = append(r.order, d.Key)
	}

	def, ok := r.descriptors[defaultKey]
	if !ok {
		return nil, fmt.Errorf("default chain %q is not configured", defaultKey)
	}
	if def.Kind != KindEVM {
		return nil, fmt.Errorf("default chain %q must be an EVM chain", defaultKey)
	}
	r.current = def
	return r, nil
}

// WithLogger sets the logger.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Restore applies the persisted selection. A missing entry leaves the default
// chain selected; an unknown persisted key also falls back to the default.
func (r *Registry) Restore(ctx context.Context) error {
	r.selectMu.Lock()
	defer r.selectMu.Unlock()

	key, err := r.selections.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return anchorerrors.Storage("load chain selection", err)
	}

	restored := r.resolve(key)
	r.mu.Lock()
	r.current = restored
	r.mu.Unlock()

	r.logger.Debug("restored chain selection", "key", key, "current", restored.Key)
	return nil
}

// Select makes key the current chain, persists key unchanged and notifies
// every subscriber synchronously before returning. An unknown key selects the
// default chain.
func (r *Registry) Select(ctx context.Context, key string) error {
	r.selectMu.Lock()
	defer r.selectMu.Unlock()

	next := r.resolve(key)
	if next.Key != key {
		r.logger.Warn("unknown chain key, falling back to default", "key", key, "default", next.Key)
	}

	r.mu.Lock()
	r.current = next
	r.mu.Unlock()

	var persistErr error
	if err := r.selections.Save(ctx, key); err != nil {
		persistErr = anchorerrors.Storage("save chain selection", err)
		r.logger.Error("failed to persist chain selection", "key", key, "error", err)
	}

	r.notify(ChainChanged{Key: key})
	return persistErr
}

func (r *Registry) resolve(key string) Descriptor {
	if d, ok := r.descriptors[key]; ok {
		return d.clone()
	}
	return r.descriptors[r.defaultKey].clone()
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (r *Registry) Subscribe(fn func(ChainChanged)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subscribers, id)
			r.subMu.Unlock()
		})
	}
}

func (r *Registry) notify(ev ChainChanged) {
	r.subMu.Lock()
	fns := make([]func(ChainChanged), 0, len(r.subscribers))
	// subscription order
	for i := 0; i < r.nextSubID; i++ {
		if fn, ok := r.subscribers[i]; ok {
			fns = append(fns, fn)
		}
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Current returns a copy of the current descriptor.
func (r *Registry) Current() Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.clone()
}

// IsNonEVM reports whether the current chain is the non-EVM chain.
func (r *Registry) IsNonEVM() bool {
	return r.Current().IsNonEVM()
}

// Endpoint returns the current chain's active endpoint.
func (r *Registry) Endpoint() string {
	return r.Current().Endpoint()
}

// ExplorerTxLink returns the explorer link for id on the current chain.
func (r *Registry) ExplorerTxLink(id string) string {
	return r.Current().ExplorerTxLink(id)
}

// Descriptors returns every configured descriptor in configuration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.descriptors[key].clone())
	}
	return out
}

// Lookup returns the descriptor for key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.descriptors[key]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// LookupByChainID finds an EVM descriptor by numeric chain id.
func (r *Registry) LookupByChainID(id uint64) (Descriptor, bool) {
	for _, key := range r.order {
		d := r.descriptors[key]
		if d.Kind != KindEVM {
			continue
		}
		if n, err := d.ChainID(); err == nil && n == id {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

// SolanaContext snapshots the current chain for a transaction flow. It fails
// when an EVM chain is selected.
func (r *Registry) SolanaContext() (Context, error) {
	d := r.Current()
	if !d.IsNonEVM() {
		return Context{}, anchorerrors.ErrChainNotSolana.WithDetails(map[string]any{"chain": d.Key})
	}
	return d.Context(), nil
}
