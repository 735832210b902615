package idl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
)

// maxDocumentSize bounds the bytes read from an IDL source.
const maxDocumentSize = 8 << 20

// Loader fetches IDL documents from URLs or local files.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a loader with a default HTTP client.
func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
}

// WithHTTPClient replaces the HTTP client.
func (l *Loader) WithHTTPClient(client *http.Client) *Loader {
	if client != nil {
		l.client = client
	}
	return l
}

// WithLogger sets the logger.
func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Load fetches and parses the IDL at path, an http(s) URL or a file path.
// Every failure is an IDL_LOAD error; nothing is retried.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if isURL(path) {
		data, err = l.fetch(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, anchorerrors.IDLLoad(path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, anchorerrors.IDLLoad(path, err)
	}

	l.logger.Debug("idl loaded",
		"source", path,
		"program", doc.ProgramName(),
		"instructions", len(doc.Instructions),
		"errors", len(doc.Errors),
	)
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

func isURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Parse decodes an IDL document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse IDL JSON: %w", err)
	}
	if len(doc.Instructions) == 0 {
		return nil, fmt.Errorf("idl declares no instructions")
	}
	return &doc, nil
}
