// Package workspace hands out private scratch directories to conversion jobs
// and removes the ones left behind by jobs that never released them.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Qwejay/Qconverto/utils"
)

const dirPrefix = "job-"

// Manager owns the scratch root. It is safe for concurrent use.
type Manager struct {
	root   string
	maxAge time.Duration // 0 disables age-based cleanup
	mu     sync.Mutex
	active map[string]string // job ID -> scratch dir
	log    *utils.ComponentLogger
}

// Entry describes one scratch directory found under the root.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// New creates the scratch root if needed.
func New(root string, maxAge time.Duration) (*Manager, error) {
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &Manager{
		root:   root,
		maxAge: maxAge,
		active: make(map[string]string),
		log:    utils.NewComponentLogger("workspace"),
	}, nil
}

// Root returns the scratch root.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh scratch directory for jobID.
func (m *Manager) Acquire(jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir, ok := m.active[jobID]; ok {
		return "", fmt.Errorf("job %s already holds %s", jobID, dir)
	}
	dir, err := os.MkdirTemp(m.root, dirPrefix+sanitize(jobID)+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	m.active[jobID] = dir
	return dir, nil
}

// Release removes the scratch directory of jobID. Errors are logged, never returned.
func (m *Manager) Release(jobID string) {
	m.mu.Lock()
	dir, ok := m.active[jobID]
	delete(m.active, jobID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.log.Warn("Failed to remove scratch dir", "job_id", jobID, "path", dir, "error", err)
	}
}

// Active returns the number of directories currently handed out.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Cleanup removes scratch directories older than the max age that no running job holds.
// It returns the number of directories removed.
func (m *Manager) Cleanup() (int, error) {
	if m.maxAge <= 0 {
		return 0, nil
	}
	entries, err := m.List()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	held := make(map[string]bool, len(m.active))
	for _, dir := range m.active {
		held[dir] = true
	}
	m.mu.Unlock()

	removed := 0
	var removedSize int64
	now := time.Now()
	for _, e := range entries {
		if held[e.Path] || now.Sub(e.ModTime) <= m.maxAge {
			continue
		}
		if err := os.RemoveAll(e.Path); err != nil {
			m.log.Warn("Failed to remove stale scratch dir", "path", e.Path, "error", err)
			continue
		}
		removed++
		removedSize += e.Size
	}

	if removed > 0 {
		m.log.Info("Workspace cleanup completed", "removed_dirs", removed, "removed_bytes", removedSize)
	}
	return removed, nil
}

// List returns the scratch directories under the root with their total size.
func (m *Manager) List() ([]Entry, error) {
	dirs, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read work dir: %w", err)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() || !strings.HasPrefix(d.Name(), dirPrefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(m.root, d.Name())
		entries = append(entries, Entry{Path: path, Size: dirSize(path), ModTime: info.ModTime()})
	}
	return entries, nil
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		if r == filepath.Separator || r == '/' || r == '*' {
			return '_'
		}
		return r
	}, id)
}
