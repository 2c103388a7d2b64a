package web

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ResultStore holds finished cards for download, keyed by id. Entries expire
// after the configured TTL; a replaced or expired card is simply gone and the
// client must generate a new one.
type ResultStore struct {
	cache *cache.Cache
}

func NewResultStore(ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResultStore{cache: cache.New(ttl, 2*ttl)}
}

// Put stores png under a fresh id and returns it.
func (s *ResultStore) Put(png []byte) string {
	id := uuid.NewString()
	s.cache.SetDefault(id, png)
	return id
}

// Get returns the card stored under id.
func (s *ResultStore) Get(id string) ([]byte, bool) {
	value, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	png, ok := value.([]byte)
	return png, ok
}
