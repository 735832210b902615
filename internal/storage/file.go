package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// maxFileAttempts bounds the attempt history kept in the state file.
const maxFileAttempts = 500

type fileState struct {
	Selection *SelectionModel `yaml:"selection,omitempty"`
	Attempts  []*AttemptModel `yaml:"attempts,omitempty"`
}

// FileRepository persists state in a single YAML file. Every write replaces
// the file atomically.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository opens the state file at path. A leading "~/" expands to
// the user's home directory. The file is created on first write.
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is empty")
	}

	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	return &FileRepository{path: expanded}, nil
}

// Path returns the resolved state file location.
func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Selections() SelectionRepository { return fileSelections{r} }
func (r *FileRepository) Attempts() AttemptRepository     { return fileAttempts{r} }
func (r *FileRepository) Close() error                    { return nil }

// Ping checks that the state file, if present, is readable.
func (r *FileRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.read()
	return err
}

func (r *FileRepository) read() (*fileState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state fileState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", r.path, err)
	}
	return &state, nil
}

func (r *FileRepository) write(state *fileState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	return os.Rename(tmp.Name(), r.path)
}

func (r *FileRepository) update(fn func(*fileState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.read()
	if err != nil {
		return err
	}
	fn(state)
	return r.write(state)
}

type fileSelections struct{ r *FileRepository }

func (s fileSelections) Load(ctx context.Context) (string, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	state, err := s.r.read()
	if err != nil {
		return "", err
	}
	if state.Selection == nil || state.Selection.Key == "" {
		return "", ErrNotFound
	}
	return state.Selection.Key, nil
}

func (s fileSelections) Save(ctx context.Context, key string) error {
	return s.r.update(func(state *fileState) {
		state.Selection = &SelectionModel{Key: key, UpdatedAt: time.Now().UTC()}
	})
}

type fileAttempts struct{ r *FileRepository }

func (a fileAttempts) Save(ctx context.Context, attempt *AttemptModel) error {
	return a.r.update(func(state *fileState) {
		cp := *attempt
		for i, existing := range state.Attempts {
			if existing.ID == attempt.ID {
				state.Attempts[i] = &cp
				return
			}
		}
		state.Attempts = append(state.Attempts, &cp)
		if len(state.Attempts) > maxFileAttempts {
			state.Attempts = state.Attempts[len(state.Attempts)-maxFileAttempts:]
		}
	})
}

func (a fileAttempts) FindBySignature(ctx context.Context, signature string) (*AttemptModel, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()

	state, err := a.r.read()
	if err != nil {
		return nil, err
	}
	for _, attempt := range state.Attempts {
		if signature != "" && attempt.Signature == signature {
			return attempt, nil
		}
	}
	return nil, nil
}

func (a fileAttempts) FindRecent(ctx context.Context, wallet string, limit int) ([]*AttemptModel, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()

	state, err := a.r.read()
	if err != nil {
		return nil, err
	}
	return recentAttempts(state.Attempts, wallet, limit), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
