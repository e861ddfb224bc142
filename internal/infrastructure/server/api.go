package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/infrastructure/ai"
)

const maxBodyBytes = 1 << 20

// portValue accepts a port as a JSON number or a numeric string, as form
// posts tend to send it.
type portValue int

func (p *portValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Non-numeric ports fail target validation with the usual message.
		*p = -1
		return nil
	}
	*p = portValue(n)
	return nil
}

type registerRequest struct {
	ServerName string          `json:"serverName"`
	Host       string          `json:"host"`
	Port       portValue       `json:"port"`
	Username   string          `json:"username"`
	AuthType   domain.AuthKind `json:"authType"`
	Password   string          `json:"password"`
	PrivateKey string          `json:"privateKey"`
	Passphrase string          `json:"passphrase"`
}

type updateRequest struct {
	Host       string          `json:"host"`
	Port       portValue       `json:"port"`
	Username   string          `json:"username"`
	AuthType   domain.AuthKind `json:"authType"`
	Password   string          `json:"password"`
	PrivateKey string          `json:"privateKey"`
	Passphrase string          `json:"passphrase"`
}

type modelSelection struct {
	ModelID string `json:"model_id"`
	APIKey  string `json:"api_key"`
}

type modelsResponse struct {
	Models       []domain.ModelDefinition `json:"models"`
	ActiveModel  string                   `json:"active_model"`
	DefaultModel string                   `json:"default_model"`
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.Targets.List(r.Context())
	if err != nil {
		s.internalError(w, "list servers", err)
		return
	}
	if servers == nil {
		servers = []domain.TargetSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": servers})
}

func (s *Server) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target := domain.Target{
		Name:       strings.TrimSpace(req.ServerName),
		Host:       strings.TrimSpace(req.Host),
		Port:       int(req.Port),
		Username:   strings.TrimSpace(req.Username),
		AuthType:   req.AuthType,
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
		Passphrase: req.Passphrase,
	}
	if err := s.Targets.Register(r.Context(), target); err != nil {
		s.targetError(w, "register server", err)
		return
	}
	s.Logger.Info("server registered", map[string]interface{}{
		"server":   target.Name,
		"identity": target.Identity(),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Server %s registered successfully", target.Name),
	})
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.Targets.Update(r.Context(), name, domain.TargetPatch{
		Host:       strings.TrimSpace(req.Host),
		Port:       int(req.Port),
		Username:   strings.TrimSpace(req.Username),
		AuthType:   req.AuthType,
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
		Passphrase: req.Passphrase,
	})
	if err != nil {
		s.targetError(w, "update server", err)
		return
	}
	s.Logger.Info("server updated", map[string]interface{}{"server": name})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Server updated successfully",
		"server":  updated.Redacted(),
	})
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.Targets.Delete(r.Context(), name); err != nil {
		s.targetError(w, "delete server", err)
		return
	}
	s.Logger.Info("server deleted", map[string]interface{}{"server": name})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server deleted successfully"})
}

func (s *Server) handleGetModels(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Config.Load(r.Context())
	if err != nil {
		s.internalError(w, "load config", err)
		return
	}
	models := cfg.Models
	if models == nil {
		models = []domain.ModelDefinition{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		Models:       models,
		ActiveModel:  cfg.CurrentModelName(),
		DefaultModel: cfg.Preferences.DefaultModel,
	})
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req modelSelection
	if !decodeBody(w, r, &req) {
		return
	}
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		writeError(w, http.StatusBadRequest, "Model ID is required")
		return
	}

	cfg, err := s.Config.Load(r.Context())
	if err != nil {
		s.internalError(w, "load config", err)
		return
	}
	model, ok := cfg.FindModelByName(modelID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid model ID")
		return
	}
	if key := strings.TrimSpace(req.APIKey); key != "" && s.Keys != nil {
		s.Keys.Set(ai.ProviderKindFor(model), key)
	}
	if err := cfg.SetActiveModel(model.Name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid model ID")
		return
	}
	if err := s.Config.Save(r.Context(), cfg); err != nil {
		s.internalError(w, "save config", err)
		return
	}
	s.Logger.Info("active model changed", map[string]interface{}{
		"model":   model.Name,
		"api_key": req.APIKey != "",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s configured successfully and set as active model", model.Label()),
	})
}

func (s *Server) targetError(w http.ResponseWriter, action string, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "Server not found")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	default:
		s.internalError(w, action, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	s.Logger.Error(action+" failed", err, nil)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
