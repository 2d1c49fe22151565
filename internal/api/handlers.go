package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxActionBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleRateLimitStats(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]any{
		"total":    s.stats.Total(),
		"byPolicy": s.stats.ByPolicy(),
		"byRoute":  s.stats.ByRoute(),
	})
}

func (s *Server) handleExecutiveMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.source.ExecutiveMetrics(r.Context())
	if err != nil {
		s.logger.Error("executive metrics unavailable", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load metrics")
		return
	}
	respondData(w, http.StatusOK, m)
}

func (s *Server) handleExecutiveAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Target = strings.TrimSpace(req.Target)

	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	a := Action{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Target:    req.Target,
		Note:      req.Note,
		Status:    "queued",
		CreatedAt: s.now().UTC(),
	}
	if err := s.actions.Enqueue(r.Context(), a); err != nil {
		s.logger.Error("action not queued", "type", a.Type, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to queue action")
		return
	}

	s.logger.Info("executive action queued", "action_id", a.ID, "type", a.Type, "target", a.Target)
	respondData(w, http.StatusAccepted, a)
}

// validationMessage transforma o primeiro erro do validator numa frase curta.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
