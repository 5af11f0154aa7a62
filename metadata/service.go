package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	c "github.com/patrickmn/go-cache"
	"github.com/waflow/waflow/flow"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"go.uber.org/zap"
)

// Service is the authoring-side surface over flow definitions. The
// engine consumes only GetActiveFlow.
type Service interface {
	SaveFlow(fl model.Flow) (*model.Flow, error)

	GetFlow(tenantId string, flowId string) (*model.Flow, error)

	ListFlows(tenantId string) ([]model.Flow, error)

	DeleteFlow(tenantId string, flowId string) error

	// GetActiveFlow returns the compiled form of the tenant's
	// most-recently-updated active flow.
	GetActiveFlow(tenantId string) (*flow.Flow, error)
}

type metadataService struct {
	storage  persistence.FlowStorage
	compiled *c.Cache
}

func NewMetadataService(storage persistence.FlowStorage) Service {
	return &metadataService{
		storage:  storage,
		compiled: c.New(c.NoExpiration, 10*time.Minute),
	}
}

func compiledKey(tenantId string, flowId string) string {
	return fmt.Sprintf("%s:%s", tenantId, flowId)
}

// SaveFlow validates the graph, assigns an id on create, and on
// activation demotes any other active flow of the tenant so at most one
// stays active.
func (s *metadataService) SaveFlow(fl model.Flow) (*model.Flow, error) {
	if len(fl.TenantId) == 0 {
		return nil, fmt.Errorf("flow should have a tenant id")
	}
	if err := flow.Validate(&fl); err != nil {
		return nil, err
	}
	now := time.Now()
	if len(fl.Id) == 0 {
		fl.Id = uuid.New().String()
		fl.CreatedAt = now
	}
	if len(fl.Status) == 0 {
		fl.Status = model.FLOW_STATUS_DRAFT
	}
	fl.UpdatedAt = now
	if fl.Status == model.FLOW_STATUS_ACTIVE {
		if err := s.demoteActiveFlows(fl.TenantId, fl.Id); err != nil {
			return nil, err
		}
	}
	if err := s.storage.Save(fl); err != nil {
		return nil, err
	}
	s.compiled.Delete(compiledKey(fl.TenantId, fl.Id))
	return &fl, nil
}

func (s *metadataService) demoteActiveFlows(tenantId string, exceptFlowId string) error {
	flows, err := s.storage.List(tenantId)
	if err != nil {
		return err
	}
	for _, other := range flows {
		if other.Id == exceptFlowId || other.Status != model.FLOW_STATUS_ACTIVE {
			continue
		}
		other.Status = model.FLOW_STATUS_INACTIVE
		if err := s.storage.Save(other); err != nil {
			return err
		}
		s.compiled.Delete(compiledKey(tenantId, other.Id))
		logger.Info("demoted previously active flow", zap.String("tenant", tenantId), zap.String("flowId", other.Id))
	}
	return nil
}

func (s *metadataService) GetFlow(tenantId string, flowId string) (*model.Flow, error) {
	return s.storage.Get(tenantId, flowId)
}

func (s *metadataService) ListFlows(tenantId string) ([]model.Flow, error) {
	return s.storage.List(tenantId)
}

func (s *metadataService) DeleteFlow(tenantId string, flowId string) error {
	if err := s.storage.Delete(tenantId, flowId); err != nil {
		return err
	}
	s.compiled.Delete(compiledKey(tenantId, flowId))
	return nil
}

func (s *metadataService) GetActiveFlow(tenantId string) (*flow.Flow, error) {
	fl, err := s.storage.GetActiveFlow(tenantId)
	if err != nil {
		return nil, err
	}
	key := compiledKey(tenantId, fl.Id)
	if cached, found := s.compiled.Get(key); found {
		return cached.(*flow.Flow), nil
	}
	compiled := flow.Convert(fl)
	s.compiled.Set(key, compiled, c.NoExpiration)
	return compiled, nil
}
