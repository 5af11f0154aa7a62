package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Connect and disconnect never fail from the caller's point of view:
// outcomes surface on the status record, which the dashboard polls.

func (s *Server) HandleConnect(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]
	go s.connectionManager.Connect(tenantId)
	respondOK(w, "connecting")
}

func (s *Server) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]
	s.connectionManager.Disconnect(tenantId)
	respondOK(w, "disconnected")
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]
	respondWithJSON(w, http.StatusOK, s.connectionManager.GetStatus(tenantId))
}
