package memory

import (
	"context"
	"sync"

	"medy-coop-service/internal/domain"
)

// Directory is an in-memory friendship graph and profile store.
type Directory struct {
	mu       sync.RWMutex
	friends  map[string]map[string]struct{}
	profiles map[string]domain.UserProfile
}

func NewDirectory() *Directory {
	return &Directory{
		friends:  make(map[string]map[string]struct{}),
		profiles: make(map[string]domain.UserProfile),
	}
}

// AddFriendship records an accepted friendship in both directions.
func (d *Directory) AddFriendship(a, b string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set, ok := d.friends[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			d.friends[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

func (d *Directory) PutProfile(p domain.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *Directory) AreFriends(_ context.Context, a, b string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.friends[a][b]
	return ok, nil
}

func (d *Directory) Profile(_ context.Context, userID string) (domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return p, nil
}
