package arena

import (
	"fmt"
	"io/fs"
	"log"
	"sync"

	"github.com/bodgit/arena/cfa"
)

// Manager loads animations by name from a filesystem and keeps them for
// reuse. It is safe for concurrent use.
type Manager struct {
	fsys   fs.FS
	logger *log.Logger

	mu    sync.Mutex
	files map[string]*cfa.File
}

// NewManager returns a Manager reading from fsys.
func NewManager(fsys fs.FS, logger *log.Logger) *Manager {
	return &Manager{
		fsys:   fsys,
		logger: logger,
		files:  make(map[string]*cfa.File),
	}
}

// Get returns the animation called name, decoding it on first use. Failures
// are not remembered so a later call will try again.
func (m *Manager) Get(name string) (*cfa.File, error) {
	m.mu.Lock()
	f, ok := m.files[name]
	m.mu.Unlock()
	if ok {
		return f, nil
	}

	b, err := fs.ReadFile(m.fsys, name)
	if err != nil {
		m.logger.Printf("Unable to read \"%s\": %v\n", name, err)
		return nil, err
	}

	f, err = cfa.Load(b)
	if err != nil {
		m.logger.Printf("Unable to decode \"%s\": %v\n", name, err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have won the race, keep theirs
	if cached, ok := m.files[name]; ok {
		return cached, nil
	}
	m.files[name] = f

	return f, nil
}

// Len returns the number of cached animations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
