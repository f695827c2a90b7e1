package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves references as environment variable names.
type EnvProvider struct {
	prefix string
	lookup LookupFunc
}

// NewEnvProvider creates an env provider. prefix is prepended to every ref.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.lookup(p.prefix + ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s%s", ErrNotFound, p.prefix, ref)
	}
	return v, nil
}

func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves references as file paths below a base directory,
// in the style of mounted secret volumes. Trailing newlines are trimmed.
type FileProvider struct {
	root *os.Root
}

// NewFileProvider opens dir as the provider root. References cannot escape it.
func NewFileProvider(dir string) (*FileProvider, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("secret: open file provider root: %w", err)
	}
	return &FileProvider{root: root}, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	data, err := p.root.ReadFile(filepath.FromSlash(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p *FileProvider) Close() error { return p.root.Close() }

var (
	_ Provider = (*EnvProvider)(nil)
	_ Provider = (*FileProvider)(nil)
)
