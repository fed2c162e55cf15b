package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stepup/gradebook/internal/application/command"
	"github.com/stepup/gradebook/internal/application/query"
	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// StudentRequest is the body of POST /student.
type StudentRequest struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Marks []int  `json:"marks"`
}

// MarkRequest is the body of POST /student/{id}/marks.
type MarkRequest struct {
	Mark *int `json:"mark"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSaveStudent handles POST /student. Responds 201 with the bare id.
func (s *Server) handleSaveStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.SaveStudent.Handle(r.Context(), command.SaveStudentCommand{
		ID:     req.ID,
		Name:   req.Name,
		Grades: req.Marks,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res.Student.ID().Int64())
}

// handleGetStudent handles GET /student/{id}.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	dto, err := s.deps.GetStudent.Handle(r.Context(), query.GetStudentQuery{ID: id})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleDeleteStudent handles DELETE /student/{id}.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.deps.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{ID: id}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleTopStudent handles GET /topStudent.
// No winner gives 200 with an empty body; otherwise an array sorted by id.
func (s *Server) handleTopStudent(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.TopStudents.Handle(r.Context(), query.GetTopStudentsQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if len(res.Students) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, res.Students)
}

// handleListStudents handles GET /students.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCountStudents handles GET /students/count.
func (s *Server) handleCountStudents(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.CountStudents.Handle(r.Context(), query.CountStudentsQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// handleDeleteAll handles DELETE /students.
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.DeleteAll.Handle(r.Context(), command.DeleteAllStudentsCommand{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// handleAddMark handles POST /student/{id}/marks.
func (s *Server) handleAddMark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req MarkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mark == nil {
		writeJSONError(w, http.StatusBadRequest, "mark is required")
		return
	}

	st, err := s.deps.AddGrade.Handle(r.Context(), command.AddGradeCommand{StudentID: id, Grade: *req.Mark})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.ToStudentDTO(st))
}

// handleRating handles GET /student/{id}/rating.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	dto, err := s.deps.Rating.Handle(r.Context(), query.GetRatingQuery{ID: id})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, errorMessage(err))
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, errorMessage(err))
	case shared.IsExternalService(err):
		logger.FromContext(r.Context()).Warn("dependency failure", logger.Err(err))
		writeJSONError(w, http.StatusServiceUnavailable, errorMessage(err))
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.RequestID(getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// errorMessage prefers the human-readable part of a DomainError.
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// decodeBody parses a JSON body, writing 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSONError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// pathID parses the {id} path value, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := student.ParseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errorMessage(err))
		return 0, false
	}
	return id.Int64(), true
}
