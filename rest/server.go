package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/waflow/waflow/connection"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/metadata"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port              int
	metadataService   metadata.Service
	connectionManager *connection.Manager
}

func NewServer(httpPort int, metadataService metadata.Service, connectionManager *connection.Manager) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:              httpPort,
		metadataService:   metadataService,
		connectionManager: connectionManager,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flow", s.HandleSaveFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{tenantId}", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/flow/{tenantId}/{flowId}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/{tenantId}/{flowId}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/connection/{tenantId}/connect", s.HandleConnect).Methods(http.MethodPost)
	router.HandleFunc("/connection/{tenantId}/disconnect", s.HandleDisconnect).Methods(http.MethodPost)
	router.HandleFunc("/connection/{tenantId}/status", s.HandleStatus).Methods(http.MethodGet)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
