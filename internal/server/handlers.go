package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/datastore"
	"ai-list-filter/internal/models"
	createfilter "ai-list-filter/internal/workers/ai-filter/create-filter"
	summarizeprompt "ai-list-filter/internal/workers/ai-filter/summarize-prompt"
)

const (
	maxBodyBytes      = 1 << 20
	updateModulesTask = "update-modules"
	readyCheckTimeout = 2 * time.Second
)

type errorBody struct {
	Status  models.Status `json:"status"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details string        `json:"details,omitempty"`
}

type modulesBody struct {
	Modules []datastore.Module `json:"modules"`
}

func (s *Server) handleCreateFilter(maps bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input createfilter.Input
		if err := s.decode(w, r, createfilter.TaskType, &input); err != nil {
			s.respondError(w, err)
			return
		}
		input.Maps = maps

		result, err := s.deps.Pipeline.Execute(r.Context(), &input)
		s.respondResult(w, result, err)
	}
}

func (s *Server) handleSelections(maps bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input createfilter.SelectionsInput
		if err := s.decode(w, r, createfilter.SelectionsTaskType, &input); err != nil {
			s.respondError(w, err)
			return
		}
		input.Maps = maps

		result, err := s.deps.Pipeline.ExecuteWithSelections(r.Context(), &input)
		s.respondResult(w, result, err)
	}
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var input summarizeprompt.Input
	if err := s.decode(w, r, summarizeprompt.TaskType, &input); err != nil {
		s.respondError(w, err)
		return
	}

	output, err := s.deps.Summarizer.Execute(r.Context(), &input)
	if err != nil {
		if stderrors.Is(err, summarizeprompt.ErrInvalidInput) {
			err = errors.NewValidationError("prompt is required")
		}
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, output)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.deps.Modules.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, modulesBody{Modules: modules})
}

func (s *Server) handleUpdateModules(w http.ResponseWriter, r *http.Request) {
	var body modulesBody
	if err := s.decode(w, r, updateModulesTask, &body); err != nil {
		s.respondError(w, err)
		return
	}

	modules, err := s.deps.Modules.Update(r.Context(), body.Modules)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info("modules updated", map[string]interface{}{"count": len(body.Modules)})
	s.respondJSON(w, http.StatusOK, modulesBody{Modules: modules})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.deps.Ready))
	ready := true
	for name, check := range s.deps.Ready {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			ready = false
			checks[name] = "unavailable"
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"check": name,
				"error": err.Error(),
			})
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// decode reads the body, checks it against the schema of taskType and
// unmarshals it into out.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, taskType string, out interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.NewValidationError("request body could not be read")
	}
	if s.deps.Validator != nil {
		if err := s.deps.Validator.Validate(taskType, body); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewValidationError("request body is not valid JSON")
	}
	return nil
}

// respondResult writes a pipeline result. A failed run that still produced
// an error result is answered with that result at the mapped status.
func (s *Server) respondResult(w http.ResponseWriter, result *models.Result, err error) {
	if err == nil {
		s.respondJSON(w, http.StatusOK, result)
		return
	}
	if result == nil {
		s.respondError(w, err)
		return
	}
	stdErr := errors.Normalize(err)
	s.respondJSON(w, errors.HTTPStatus(stdErr.Code), result)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)
	body := errorBody{
		Status:  models.StatusError,
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": err.Error(),
		})
	} else {
		// Client errors carry their details; server errors never do.
		body.Details = stdErr.Details
	}
	s.respondJSON(w, status, body)
}
