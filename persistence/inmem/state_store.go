package inmem

import (
	"fmt"

	c "github.com/patrickmn/go-cache"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
)

var _ persistence.StateStore = new(inmemStateStore)

// inmemStateStore keeps contact state for the lifetime of the process.
// No expiration: abandoned conversations stay until the flow engine
// discards them on the next inbound message.
type inmemStateStore struct {
	cache *c.Cache
}

func NewStateStore() *inmemStateStore {
	return &inmemStateStore{
		cache: c.New(c.NoExpiration, 0),
	}
}

func stateKey(tenantId string, contactAddress string) string {
	return fmt.Sprintf("%s:%s", tenantId, contactAddress)
}

func (s *inmemStateStore) Get(tenantId string, contactAddress string) (*model.ContactState, error) {
	value, found := s.cache.Get(stateKey(tenantId, contactAddress))
	if !found {
		return nil, persistence.NotFoundError{Key: stateKey(tenantId, contactAddress)}
	}
	return value.(*model.ContactState), nil
}

func (s *inmemStateStore) Put(tenantId string, contactAddress string, state *model.ContactState) error {
	s.cache.Set(stateKey(tenantId, contactAddress), state, c.NoExpiration)
	return nil
}

func (s *inmemStateStore) Delete(tenantId string, contactAddress string) error {
	s.cache.Delete(stateKey(tenantId, contactAddress))
	return nil
}
