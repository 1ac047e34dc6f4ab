// Package cloud keeps one automatic backup per owner in an object store.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"spendwise/internal/backup"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

const (
	folder   = "expense_backups"
	fileName = "auto_backup.json"

	// MaxDownloadSize caps how much a restore will read.
	MaxDownloadSize int64 = 10 << 20
)

// ErrTooLarge is returned when a stored backup exceeds MaxDownloadSize.
var ErrTooLarge = errors.New("cloud backup too large")

// ObjectStore is the blob surface a backup needs.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string, limit int64) ([]byte, time.Time, error)
	Stat(ctx context.Context, name string) (time.Time, bool, error)
	Delete(ctx context.Context, name string) error
}

// ObjectName is where owner's automatic backup lives. The owner is escaped
// into a single path segment, so distinct owners never share an object.
func ObjectName(owner string) string {
	return folder + "/" + ownerSegment(owner) + "/" + fileName
}

func ownerSegment(owner string) string {
	seg := url.PathEscape(owner)
	if seg == "." || seg == ".." {
		seg = strings.ReplaceAll(seg, ".", "%2E")
	}
	return seg
}

// Manager uploads and restores per-owner backups.
type Manager struct {
	objects ObjectStore
	logger  *log.Logger
}

func NewManager(objects ObjectStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{objects: objects, logger: logger.WithComponent(log.ComponentCloud)}
}

// Upload replaces owner's cloud backup with env.
func (m *Manager) Upload(ctx context.Context, owner string, env backup.Envelope) error {
	if owner == "" {
		return core.ErrNotAuthenticated
	}
	data, err := backup.Serialize(env)
	if err != nil {
		return err
	}
	name := ObjectName(owner)
	if err := m.objects.Put(ctx, name, data); err != nil {
		return fmt.Errorf("upload cloud backup: %w", err)
	}
	m.logger.InfoContext(ctx, "Cloud backup uploaded",
		log.FieldOwner, owner,
		log.FieldBackupObject, name,
		log.FieldCount, len(env.Records))
	return nil
}

// Restore downloads and decodes owner's backup. The returned time is when the
// object was last written. core.ErrNotFound means no backup exists.
func (m *Manager) Restore(ctx context.Context, owner string) (backup.Envelope, time.Time, error) {
	if owner == "" {
		return backup.Envelope{}, time.Time{}, core.ErrNotAuthenticated
	}
	data, updated, err := m.objects.Get(ctx, ObjectName(owner), MaxDownloadSize)
	if err != nil {
		return backup.Envelope{}, time.Time{}, fmt.Errorf("download cloud backup: %w", err)
	}
	env, err := backup.Deserialize(data)
	if err != nil {
		return backup.Envelope{}, time.Time{}, err
	}
	return env, updated, nil
}

// Exists reports whether owner has a cloud backup and when it was written.
func (m *Manager) Exists(ctx context.Context, owner string) (bool, time.Time, error) {
	if owner == "" {
		return false, time.Time{}, core.ErrNotAuthenticated
	}
	updated, ok, err := m.objects.Stat(ctx, ObjectName(owner))
	if err != nil {
		return false, time.Time{}, fmt.Errorf("stat cloud backup: %w", err)
	}
	return ok, updated, nil
}

func (m *Manager) Delete(ctx context.Context, owner string) error {
	if owner == "" {
		return core.ErrNotAuthenticated
	}
	if err := m.objects.Delete(ctx, ObjectName(owner)); err != nil {
		return fmt.Errorf("delete cloud backup: %w", err)
	}
	m.logger.InfoContext(ctx, "Cloud backup deleted", log.FieldOwner, owner)
	return nil
}

// MemoryStore is an ObjectStore held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data    []byte
	updated time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = memoryObject{data: append([]byte(nil), data...), updated: s.now()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string, limit int64) ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, time.Time{}, core.ErrNotFound
	}
	if int64(len(obj.data)) > limit {
		return nil, time.Time{}, ErrTooLarge
	}
	return append([]byte(nil), obj.data...), obj.updated, nil
}

func (s *MemoryStore) Stat(_ context.Context, name string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	return obj.updated, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return core.ErrNotFound
	}
	delete(s.objects, name)
	return nil
}
