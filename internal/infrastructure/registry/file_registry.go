// Package registry persists named SSH targets in a YAML file.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/ports"
)

// DefaultPath is used when the config does not name a registry file.
func DefaultPath() string {
	return filepath.Join(filesystem.UserHomeDir(), ".opsagent", "servers.yaml")
}

type registryFile struct {
	Servers []domain.Target `yaml:"servers"`
}

// FileRegistry implements ports.TargetStore. Secrets are stored as given;
// the file is written with owner-only permissions.
type FileRegistry struct {
	mu      sync.RWMutex
	path    string
	targets map[string]domain.Target
	now     func() time.Time
}

// NewFileRegistry loads path, treating a missing file as an empty registry.
func NewFileRegistry(path string) (*FileRegistry, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	path = filesystem.ExpandHome(path)
	r := &FileRegistry{
		path:    path,
		targets: make(map[string]domain.Target),
		now:     time.Now,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the backing file.
func (r *FileRegistry) Path() string {
	return r.path
}

// Resolve implements ports.TargetRegistry.
func (r *FileRegistry) Resolve(_ context.Context, name string) (domain.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	target, ok := r.targets[name]
	if !ok {
		return domain.Target{}, fmt.Errorf("%s: %w", name, domain.ErrTargetNotFound)
	}
	return target, nil
}

// List returns credential-free summaries sorted by name.
func (r *FileRegistry) List(_ context.Context) ([]domain.TargetSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TargetSummary, 0, len(r.targets))
	for _, target := range r.targets {
		out = append(out, target.Redacted())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Register validates and stores target, replacing any entry of the same name.
func (r *FileRegistry) Register(_ context.Context, target domain.Target) error {
	target.Name = strings.TrimSpace(target.Name)
	if target.Port == 0 {
		target.Port = domain.DefaultSSHPort
	}
	if err := target.Validate(); err != nil {
		return err
	}
	target.CreatedAt = r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.targets[target.Name]
	r.targets[target.Name] = target
	if err := r.saveLocked(); err != nil {
		if existed {
			r.targets[target.Name] = previous
		} else {
			delete(r.targets, target.Name)
		}
		return err
	}
	return nil
}

// Update applies a partial change to an existing target.
func (r *FileRegistry) Update(_ context.Context, name string, patch domain.TargetPatch) (domain.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.targets[name]
	if !ok {
		return domain.Target{}, fmt.Errorf("%s: %w", name, domain.ErrTargetNotFound)
	}
	updated := current.Apply(patch)
	if updated.Port == 0 {
		updated.Port = domain.DefaultSSHPort
	}
	if err := updated.Validate(); err != nil {
		return domain.Target{}, err
	}
	r.targets[name] = updated
	if err := r.saveLocked(); err != nil {
		r.targets[name] = current
		return domain.Target{}, err
	}
	return updated, nil
}

// Delete removes a target.
func (r *FileRegistry) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.targets[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, domain.ErrTargetNotFound)
	}
	delete(r.targets, name)
	if err := r.saveLocked(); err != nil {
		r.targets[name] = current
		return err
	}
	return nil
}

func (r *FileRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	for _, target := range file.Servers {
		if target.Name == "" {
			continue
		}
		r.targets[target.Name] = target
	}
	return nil
}

func (r *FileRegistry) saveLocked() error {
	file := registryFile{Servers: make([]domain.Target, 0, len(r.targets))}
	for _, target := range r.targets {
		file.Servers = append(file.Servers, target)
	}
	sort.Slice(file.Servers, func(i, j int) bool { return file.Servers[i].Name < file.Servers[j].Name })

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

var _ ports.TargetStore = (*FileRegistry)(nil)
