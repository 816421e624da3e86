// Package manager shares open file handles between consumers of the same
// path. Repeated acquisitions of one path reuse a single handle and a single
// lock instead of racing on independent ones; the handle is closed when the
// last reference is released.
package manager

import (
	"errors"
	"path/filepath"
	"sync"
)

// ErrClosed is returned when acquiring from a released manager.
var ErrClosed = errors.New("file manager is closed")

// File is the handle type cached by a Manager.
type File interface {
	Close() error
}

// OpenFunc opens the underlying file for a path.
type OpenFunc func(path string) (File, error)

// registry deduplicates managers by absolute path.
var (
	registryMu sync.Mutex
	registry   = map[string]*Manager{}
)

// Manager owns one shared file handle and its lock. References are counted:
// each Acquire must be paired with one Release, and the handle closes when
// the count drops to zero.
type Manager struct {
	path string
	open OpenFunc

	mu     sync.Mutex
	file   File
	refs   int
	closed bool
}

// Acquire returns the manager for path, opening the file on first use. The
// caller holds one reference. The registry lock and the per-manager lock are
// never held together.
func Acquire(path string, open OpenFunc) (*Manager, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		registryMu.Lock()
		m, ok := registry[abs]
		if !ok {
			m = &Manager{path: abs, open: open}
			registry[abs] = m
		}
		registryMu.Unlock()

		m.mu.Lock()
		if m.closed {
			// Fully released between our registry lookup and now; evict the
			// stale entry and retry with a fresh one.
			m.mu.Unlock()
			dropFromRegistry(m)
			continue
		}
		if m.file == nil {
			f, err := open(abs)
			if err != nil {
				stillEmpty := m.refs == 0
				if stillEmpty {
					m.closed = true
				}
				m.mu.Unlock()
				if stillEmpty {
					dropFromRegistry(m)
				}
				return nil, err
			}
			m.file = f
		}
		m.refs++
		m.mu.Unlock()
		return m, nil
	}
}

func dropFromRegistry(m *Manager) {
	registryMu.Lock()
	if registry[m.path] == m {
		delete(registry, m.path)
	}
	registryMu.Unlock()
}

// Path returns the absolute path this manager serves.
func (m *Manager) Path() string {
	return m.path
}

// AcquireContext locks the shared handle and returns it together with a
// release function. When needsLock is false the caller already holds the
// lock (for example while probing metadata inside another locked read) and
// only the handle is returned.
func (m *Manager) AcquireContext(needsLock bool) (File, func(), error) {
	if !needsLock {
		if m.file == nil || m.closed {
			return nil, func() {}, ErrClosed
		}
		return m.file, func() {}, nil
	}

	m.mu.Lock()
	if m.file == nil || m.closed {
		m.mu.Unlock()
		return nil, func() {}, ErrClosed
	}
	return m.file, m.mu.Unlock, nil
}

// Release drops one reference. The underlying handle is closed exactly once,
// when the last reference goes away; extra releases are no-ops.
func (m *Manager) Release() error {
	m.mu.Lock()
	if m.closed || m.refs == 0 {
		m.mu.Unlock()
		return nil
	}
	m.refs--
	if m.refs > 0 {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	f := m.file
	m.file = nil
	m.mu.Unlock()

	dropFromRegistry(m)

	if f != nil {
		return f.Close()
	}
	return nil
}
