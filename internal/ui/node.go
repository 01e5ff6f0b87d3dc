package ui

import (
	"encoding/json"
	"net/http"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
)

func (s *Server) handleNodeState(w http.ResponseWriter, r *http.Request) {
	state, err := s.router.NodeState(r.Context())
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NodeStateResult{State: state})
}

func (s *Server) handleSetNodeState(w http.ResponseWriter, r *http.Request) {
	var params protocol.NodeStateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.router.SetNodeState(r.Context(), params.State); err != nil {
		s.logger.WithField("state", params.State).Warn("Set node state failed: %v", err)
		writeRouterError(w, err)
		return
	}
	s.logger.Info("Thread interface set to %s", params.State)
	s.handleNodeState(w, r)
}

func (s *Server) handleResetNode(w http.ResponseWriter, r *http.Request) {
	if err := s.router.ResetNode(r.Context()); err != nil {
		s.logger.Warn("Node reset failed: %v", err)
		writeRouterError(w, err)
		return
	}
	s.logger.Warn("Node persistent data erased")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Node reset succeeded"})
}

// datasetKind returns the {kind} path value, or writes a 400.
func datasetKind(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind := r.PathValue("kind")
	if err := protocol.ValidateDatasetKind(kind); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return kind, true
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	kind, ok := datasetKind(w, r)
	if !ok {
		return
	}

	var (
		ds  interface{}
		err error
	)
	if kind == protocol.DatasetActive {
		ds, err = s.router.ActiveDataset(r.Context())
	} else {
		ds, err = s.router.PendingDataset(r.Context())
	}
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleSetDataset(w http.ResponseWriter, r *http.Request) {
	kind, ok := datasetKind(w, r)
	if !ok {
		return
	}

	var (
		created bool
		err     error
	)
	if kind == protocol.DatasetActive {
		var ds protocol.ActiveDataset
		if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		created, err = s.router.SetActiveDataset(r.Context(), ds)
	} else {
		var ds protocol.PendingDataset
		if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		created, err = s.router.SetPendingDataset(r.Context(), ds)
	}
	s.datasetUpdated(w, kind, created, err)
}

func (s *Server) handleDatasetTLVs(w http.ResponseWriter, r *http.Request) {
	kind, ok := datasetKind(w, r)
	if !ok {
		return
	}
	tlvs, err := s.router.DatasetTLVs(r.Context(), kind)
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.DatasetTLVs{TLVs: tlvs})
}

func (s *Server) handleSetDatasetTLVs(w http.ResponseWriter, r *http.Request) {
	kind, ok := datasetKind(w, r)
	if !ok {
		return
	}
	var body protocol.DatasetTLVs
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	created, err := s.router.SetDatasetTLVs(r.Context(), kind, body.TLVs)
	s.datasetUpdated(w, kind, created, err)
}

func (s *Server) datasetUpdated(w http.ResponseWriter, kind string, created bool, err error) {
	if err != nil {
		s.logger.WithField("dataset", kind).Warn("Dataset update failed: %v", err)
		writeRouterError(w, err)
		return
	}
	s.logger.WithField("created", created).Info("Updated %s dataset", kind)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, protocol.DatasetUpdateResult{Status: "ok", Created: created})
}
