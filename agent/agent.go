package agent

import (
	"sync"

	"github.com/waflow/waflow/config"
	"github.com/waflow/waflow/connection"
	"github.com/waflow/waflow/engine"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/metadata"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"github.com/waflow/waflow/persistence/fs"
	"github.com/waflow/waflow/persistence/inmem"
	"github.com/waflow/waflow/persistence/redis"
	"github.com/waflow/waflow/rest"
	"github.com/waflow/waflow/transport/whatsapp"
	"github.com/waflow/waflow/util"
)

type Agent struct {
	Config            config.Config
	stateStore        persistence.StateStore
	flowStorage       persistence.FlowStorage
	credentialStore   persistence.CredentialStore
	metadataService   metadata.Service
	connectionManager *connection.Manager
	flowEngine        *engine.FlowEngine
	httpServer        *rest.Server
	shutdown          bool
	shutdownLock      sync.Mutex
	wg                sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config: config,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupMetadataService,
		a.setupConnectionManager,
		a.setupFlowEngine,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		conf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		a.stateStore = redis.NewRedisStateStore(conf, util.NewJsonEncoderDecoder[model.ContactState]())
		a.flowStorage = redis.NewRedisFlowStorage(conf, util.NewJsonEncoderDecoder[model.Flow]())
	default:
		a.stateStore = inmem.NewStateStore()
		a.flowStorage = inmem.NewFlowStorage()
	}
	a.credentialStore = fs.NewCredentialStore(a.Config.CredentialDir)
	return nil
}

func (a *Agent) setupMetadataService() error {
	a.metadataService = metadata.NewMetadataService(a.flowStorage)
	return nil
}

func (a *Agent) setupConnectionManager() error {
	factory := whatsapp.NewFactory(a.credentialStore)
	a.connectionManager = connection.NewManager(factory, a.credentialStore, &a.wg)
	return nil
}

func (a *Agent) setupFlowEngine() error {
	a.flowEngine = engine.NewFlowEngine(a.metadataService, a.stateStore, a.connectionManager)
	a.connectionManager.SetMessageHandler(a.flowEngine)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.connectionManager)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		a.connectionManager.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
