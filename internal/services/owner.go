package services

import (
	"context"
	"strings"
	"sync"

	"spendwise/internal/core"
)

// OwnerContext resolves the authenticated owner of a request.
type OwnerContext interface {
	CurrentOwner(ctx context.Context) (string, error)
}

// OwnerFunc adapts a plain function to OwnerContext.
type OwnerFunc func(ctx context.Context) (string, error)

func (f OwnerFunc) CurrentOwner(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticOwner always resolves to the same owner. Used by the backup CLI.
type StaticOwner string

func (s StaticOwner) CurrentOwner(context.Context) (string, error) {
	return string(s), nil
}

func requireOwner(ctx context.Context, owners OwnerContext) (string, error) {
	if owners == nil {
		return "", core.ErrNotAuthenticated
	}
	owner, err := owners.CurrentOwner(ctx)
	if err != nil {
		return "", err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", core.ErrNotAuthenticated
	}
	return owner, nil
}

// Revisions counts ledger writes per owner. Cached computations are keyed
// on the revision, so a bump makes older entries unreachable.
type Revisions struct {
	mu sync.Mutex
	m  map[string]uint64
}

func NewRevisions() *Revisions {
	return &Revisions{m: make(map[string]uint64)}
}

func (r *Revisions) Bump(owner string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[owner]++
	return r.m[owner]
}

func (r *Revisions) Get(owner string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[owner]
}
