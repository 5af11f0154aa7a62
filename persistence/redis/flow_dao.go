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

const FLOW_KEY string = "FLOW"

var _ persistence.FlowStorage = new(redisFlowStorage)

type redisFlowStorage struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.Flow]
}

func NewRedisFlowStorage(conf Config, encoderDecoder util.EncoderDecoder[model.Flow]) *redisFlowStorage {
	return &redisFlowStorage{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (rf *redisFlowStorage) Save(flow model.Flow) error {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, flow.TenantId)
	ctx := context.Background()
	data, err := rf.encoderDecoder.Encode(flow)
	if err != nil {
		return err
	}
	if err := rf.baseDao.redisClient.HSet(ctx, key, []string{flow.Id, string(data)}).Err(); err != nil {
		logger.Error("error in saving flow", zap.String("tenant", flow.TenantId), zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowStorage) Get(tenantId string, flowId string) (*model.Flow, error) {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	flowStr, err := rf.baseDao.redisClient.HGet(ctx, key, flowId).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Key: flowId}
	}
	if err != nil {
		logger.Error("error in getting flow", zap.String("tenant", tenantId), zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rf.encoderDecoder.Decode([]byte(flowStr))
}

func (rf *redisFlowStorage) Delete(tenantId string, flowId string) error {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	if err := rf.baseDao.redisClient.HDel(ctx, key, flowId).Err(); err != nil {
		logger.Error("error in deleting flow", zap.String("tenant", tenantId), zap.String("flowId", flowId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowStorage) List(tenantId string) ([]model.Flow, error) {
	key := rf.baseDao.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	values, err := rf.baseDao.redisClient.HVals(ctx, key).Result()
	if err != nil {
		logger.Error("error in listing flows", zap.String("tenant", tenantId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flows := make([]model.Flow, 0, len(values))
	for _, value := range values {
		flow, err := rf.encoderDecoder.Decode([]byte(value))
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, nil
}

func (rf *redisFlowStorage) GetActiveFlow(tenantId string) (*model.Flow, error) {
	flows, err := rf.List(tenantId)
	if err != nil {
		return nil, err
	}
	var active *model.Flow
	for i := range flows {
		if flows[i].Status != model.FLOW_STATUS_ACTIVE {
			continue
		}
		if active == nil || flows[i].UpdatedAt.After(active.UpdatedAt) {
			active = &flows[i]
		}
	}
	if active == nil {
		return nil, persistence.NotFoundError{Key: tenantId}
	}
	return active, nil
}
