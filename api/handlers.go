package api

import (
	"fmt"
	"net/http"

	"github.com/hupe1980/agencyhub/core"
)

type sessionRequest struct {
	AgencyID string `json:"agency_id"`
	ThreadID string `json:"thread_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

type executeRequest struct {
	ID         string `json:"id"`
	UserPrompt string `json:"user_prompt"`
}

type versionResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func user(r *http.Request) core.User {
	u, _ := UserFromContext(r.Context())
	return u
}

// agency

func (s *Server) handleAgencyList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Agencies.List(r.Context(), user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, list)
}

func (s *Server) handleAgencyGet(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "agency_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Agencies.Get(r.Context(), user(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, cfg)
}

func (s *Server) handleAgencyPut(w http.ResponseWriter, r *http.Request) {
	var cfg core.AgencyConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.svc.Agencies.UpdateOrCreate(r.Context(), user(r), &cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"agency_id": id})
}

func (s *Server) handleAgencyDelete(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "agency_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Agencies.Delete(r.Context(), user(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Agency deleted")
}

// session

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Sessions.List(r.Context(), user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, list)
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AgencyID == "" {
		s.writeError(w, r, fmt.Errorf("agency_id is required: %w", core.ErrInvalidInput))
		return
	}
	threadID, err := s.svc.Sessions.Create(r.Context(), user(r), req.AgencyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"thread_id": threadID})
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AgencyID == "" || req.Message == "" {
		s.writeError(w, r, fmt.Errorf("agency_id and message are required: %w", core.ErrInvalidInput))
		return
	}
	res, err := s.svc.Sessions.PostMessage(r.Context(), user(r), req.AgencyID, req.ThreadID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Sessions.Cancel(r.Context(), user(r), req.AgencyID, req.ThreadID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Turn cancelled")
}

// tool

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Tools.List(r.Context(), user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, list)
}

func (s *Server) handleToolGet(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Tools.Get(r.Context(), user(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, cfg)
}

func (s *Server) handleToolCreate(w http.ResponseWriter, r *http.Request) {
	var cfg core.ToolConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, version, err := s.svc.Tools.CreateVersion(r.Context(), user(r), &cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, versionResponse{ID: id, Version: version})
}

func (s *Server) handleToolApprove(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Tools.Approve(r.Context(), user(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Tool configuration approved")
}

func (s *Server) handleToolExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.Tools.Execute(r.Context(), user(r), req.ID, req.UserPrompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"output": out})
}

// skill

func (s *Server) handleSkillList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Skills.List(r.Context(), user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, list)
}

func (s *Server) handleSkillGet(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Skills.Get(r.Context(), user(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, cfg)
}

func (s *Server) handleSkillCreate(w http.ResponseWriter, r *http.Request) {
	var cfg core.SkillConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, version, err := s.svc.Skills.CreateVersion(r.Context(), user(r), &cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, versionResponse{ID: id, Version: version})
}

func (s *Server) handleSkillDelete(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Skills.Delete(r.Context(), user(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Skill configuration deleted")
}

func (s *Server) handleSkillApprove(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Skills.Approve(r.Context(), user(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Skill configuration approved")
}

func (s *Server) handleSkillExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.Skills.Execute(r.Context(), user(r), req.ID, req.UserPrompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, map[string]string{"output": out})
}
