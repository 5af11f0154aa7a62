package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/util"
	"go.uber.org/zap"
)

const CONTACT_STATE_KEY string = "STATE"

var _ persistence.StateStore = new(redisStateStore)

// redisStateStore keeps contact state in one hash per tenant, field per
// contact address.
type redisStateStore struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.ContactState]
}

func NewRedisStateStore(conf Config, encoderDecoder util.EncoderDecoder[model.ContactState]) *redisStateStore {
	return &redisStateStore{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (rs *redisStateStore) Get(tenantId string, contactAddress string) (*model.ContactState, error) {
	key := rs.baseDao.getNamespaceKey(CONTACT_STATE_KEY, tenantId)
	ctx := context.Background()
	stateStr, err := rs.baseDao.redisClient.HGet(ctx, key, contactAddress).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Key: contactAddress}
	}
	if err != nil {
		logger.Error("error in getting contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	state, err := rs.encoderDecoder.Decode([]byte(stateStr))
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (rs *redisStateStore) Put(tenantId string, contactAddress string, state *model.ContactState) error {
	key := rs.baseDao.getNamespaceKey(CONTACT_STATE_KEY, tenantId)
	ctx := context.Background()
	data, err := rs.encoderDecoder.Encode(*state)
	if err != nil {
		return err
	}
	if err := rs.baseDao.redisClient.HSet(ctx, key, []string{contactAddress, string(data)}).Err(); err != nil {
		logger.Error("error in saving contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisStateStore) Delete(tenantId string, contactAddress string) error {
	key := rs.baseDao.getNamespaceKey(CONTACT_STATE_KEY, tenantId)
	ctx := context.Background()
	if err := rs.baseDao.redisClient.HDel(ctx, key, contactAddress).Err(); err != nil {
		logger.Error("error in deleting contact state", zap.String("tenant", tenantId), zap.String("contact", contactAddress), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
