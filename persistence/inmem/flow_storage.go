package inmem

import (
	"fmt"
	"strings"

	c "github.com/patrickmn/go-cache"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
)

var _ persistence.FlowStorage = new(inmemFlowStorage)

type inmemFlowStorage struct {
	cache *c.Cache
}

func NewFlowStorage() *inmemFlowStorage {
	return &inmemFlowStorage{
		cache: c.New(c.NoExpiration, 0),
	}
}

func flowKey(tenantId string, flowId string) string {
	return fmt.Sprintf("%s:%s", tenantId, flowId)
}

func (s *inmemFlowStorage) Save(flow model.Flow) error {
	s.cache.Set(flowKey(flow.TenantId, flow.Id), flow, c.NoExpiration)
	return nil
}

func (s *inmemFlowStorage) Get(tenantId string, flowId string) (*model.Flow, error) {
	value, found := s.cache.Get(flowKey(tenantId, flowId))
	if !found {
		return nil, persistence.NotFoundError{Key: flowKey(tenantId, flowId)}
	}
	flow := value.(model.Flow)
	return &flow, nil
}

func (s *inmemFlowStorage) Delete(tenantId string, flowId string) error {
	s.cache.Delete(flowKey(tenantId, flowId))
	return nil
}

func (s *inmemFlowStorage) List(tenantId string) ([]model.Flow, error) {
	prefix := tenantId + ":"
	var flows []model.Flow
	for key, item := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			flows = append(flows, item.Object.(model.Flow))
		}
	}
	return flows, nil
}

func (s *inmemFlowStorage) GetActiveFlow(tenantId string) (*model.Flow, error) {
	flows, err := s.List(tenantId)
	if err != nil {
		return nil, err
	}
	var active *model.Flow
	for i := range flows {
		fl := flows[i]
		if fl.Status != model.FLOW_STATUS_ACTIVE {
			continue
		}
		if active == nil || fl.UpdatedAt.After(active.UpdatedAt) {
			active = &flows[i]
		}
	}
	if active == nil {
		return nil, persistence.NotFoundError{Key: tenantId}
	}
	return active, nil
}
