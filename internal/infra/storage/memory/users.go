package memory

import (
	"context"
	"strings"
	"sync"

	domainuser "tradepost/internal/domain/user"
)

// UserDirectory serves public profiles from memory. Not suitable for production.
type UserDirectory struct {
	mu   sync.RWMutex
	byID map[string]*domainuser.PublicProfile
}

// NewUserDirectory builds an empty directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{byID: make(map[string]*domainuser.PublicProfile)}
}

func (d *UserDirectory) PublicProfile(ctx context.Context, id string) (*domainuser.PublicProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

// Put registers or replaces a profile.
func (d *UserDirectory) Put(profile domainuser.PublicProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[profile.ID] = &profile
}

// Remove drops a profile, simulating a deleted account.
func (d *UserDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}

var _ domainuser.Directory = (*UserDirectory)(nil)
