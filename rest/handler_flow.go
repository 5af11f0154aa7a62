package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/waflow/waflow/logger"
	"github.com/waflow/waflow/model"
	"github.com/waflow/waflow/persistence"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveFlow(w http.ResponseWriter, r *http.Request) {
	var fl model.Flow
	if err := json.NewDecoder(r.Body).Decode(&fl); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow payload")
		return
	}
	defer r.Body.Close()
	saved, err := s.metadataService.SaveFlow(fl)
	if err != nil {
		logger.Error("error saving flow", zap.String("tenant", fl.TenantId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]
	flows, err := s.metadataService.ListFlows(tenantId)
	if err != nil {
		logger.Error("error listing flows", zap.String("tenant", tenantId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing flows")
		return
	}
	respondWithJSON(w, http.StatusOK, flows)
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fl, err := s.metadataService.GetFlow(vars["tenantId"], vars["flowId"])
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "flow not found")
			return
		}
		logger.Error("error getting flow", zap.String("tenant", vars["tenantId"]), zap.String("flowId", vars["flowId"]), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error getting flow")
		return
	}
	respondWithJSON(w, http.StatusOK, fl)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.metadataService.DeleteFlow(vars["tenantId"], vars["flowId"]); err != nil {
		logger.Error("error deleting flow", zap.String("tenant", vars["tenantId"]), zap.String("flowId", vars["flowId"]), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting flow")
		return
	}
	respondOK(w, "flow deleted")
}
