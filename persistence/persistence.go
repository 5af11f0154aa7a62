package persistence

import (
	"fmt"

	"github.com/waflow/waflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("not found %s", e.Key)
}

// StateStore holds contact execution state keyed by (tenant, contact).
// The flow engine is its only writer.
type StateStore interface {
	Get(tenantId string, contactAddress string) (*model.ContactState, error)

	Put(tenantId string, contactAddress string, state *model.ContactState) error

	Delete(tenantId string, contactAddress string) error
}

type FlowStorage interface {
	Save(flow model.Flow) error

	Get(tenantId string, flowId string) (*model.Flow, error)

	Delete(tenantId string, flowId string) error

	List(tenantId string) ([]model.Flow, error)

	// GetActiveFlow returns the most recently updated active flow of the
	// tenant, or NotFoundError when the tenant has none.
	GetActiveFlow(tenantId string) (*model.Flow, error)
}

// CredentialStore keeps the opaque per-tenant transport authentication
// blob. Clear removes the tenant's credentials as a unit so the next
// connect re-pairs from scratch.
type CredentialStore interface {
	Dir(tenantId string) (string, error)

	HasCredentials(tenantId string) (bool, error)

	Clear(tenantId string) error
}
