package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDirectoryCacheSize = 1024
	defaultLookupTimeout      = 2 * time.Second
)

// CachedDirectory serves display names from an LRU in front of a repository.
// Lookups that fail or time out fall back to the raw id and are not cached.
type CachedDirectory struct {
	repo    identity.IIdentityRepository
	names   *lru.Cache
	timeout time.Duration

	mu         sync.RWMutex
	candidates []identity.Identity
}

func NewCachedDirectory(repo identity.IIdentityRepository, size int) (*CachedDirectory, error) {
	if size <= 0 {
		size = DefaultDirectoryCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedDirectory{repo: repo, names: cache, timeout: defaultLookupTimeout}, nil
}

// Refresh reloads the mention candidates and warms the name cache.
func (d *CachedDirectory) Refresh(ctx context.Context) error {
	list, err := d.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, ident := range list {
		d.names.Add(ident.ID, ident.DisplayName)
	}
	d.mu.Lock()
	d.candidates = list
	d.mu.Unlock()
	logrus.Debugf("[DIRECTORY] Loaded %d identities", len(list))
	return nil
}

func (d *CachedDirectory) ResolveDisplayName(id string) string {
	if id == "" {
		return ""
	}
	if v, ok := d.names.Get(id); ok {
		return v.(string)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ident, err := d.repo.Get(ctx, id)
	if err != nil || ident == nil || ident.DisplayName == "" {
		if err != nil {
			logrus.WithError(err).WithField("identity", id).Debug("[DIRECTORY] Falling back to raw id")
		}
		return id
	}
	d.names.Add(id, ident.DisplayName)
	return ident.DisplayName
}

func (d *CachedDirectory) Identities() []identity.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]identity.Identity, len(d.candidates))
	copy(out, d.candidates)
	return out
}

// StaticDirectory is a fixed in-memory directory.
type StaticDirectory struct {
	byID map[string]identity.Identity
	list []identity.Identity
}

func NewStaticDirectory(identities ...identity.Identity) *StaticDirectory {
	d := &StaticDirectory{byID: make(map[string]identity.Identity, len(identities))}
	for _, ident := range identities {
		if ident.ID == "" {
			continue
		}
		if _, dup := d.byID[ident.ID]; dup {
			continue
		}
		d.byID[ident.ID] = ident
		d.list = append(d.list, ident)
	}
	sort.SliceStable(d.list, func(i, j int) bool { return d.list[i].ID < d.list[j].ID })
	return d
}

func (d *StaticDirectory) ResolveDisplayName(id string) string {
	if ident, ok := d.byID[id]; ok && ident.DisplayName != "" {
		return ident.DisplayName
	}
	return id
}

func (d *StaticDirectory) Identities() []identity.Identity {
	out := make([]identity.Identity, len(d.list))
	copy(out, d.list)
	return out
}
