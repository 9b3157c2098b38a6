package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/breslov-archive/linkreview/internal/models"
	"github.com/breslov-archive/linkreview/internal/refsource"
	"github.com/breslov-archive/linkreview/internal/review"
)

// Identity headers. The username is a display name used for provenance
// stamps; the session token identifies one browser tab.
const (
	headerUsername = "X-Username"
	headerSession  = "X-Session-Token"
	headerVersion  = "X-Data-Version"
)

// sessionToken returns the client's session token, minting one when the
// request carries none. The token is always echoed in the response so the
// client can adopt it.
func sessionToken(w http.ResponseWriter, r *http.Request) string {
	token := r.Header.Get(headerSession)
	if token == "" {
		token = uuid.NewString()
	}
	w.Header().Set(headerSession, token)
	return token
}

func username(r *http.Request) string {
	return r.Header.Get(headerUsername)
}

// pathIndex parses the {index} path segment.
func pathIndex(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("index"))
}

// writeStoreError maps review/models errors onto API error responses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error(), codeNotFound)
	case errors.Is(err, review.ErrConflict):
		respondErrorDetails(w, http.StatusConflict,
			"Data has been modified by another user. Please reload.", codeConflict,
			map[string]any{"current_version": s.store.Version()})
	case errors.Is(err, review.ErrOccupied):
		respondError(w, http.StatusConflict, err.Error(), codeOccupied)
	case errors.Is(err, models.ErrUnknownField),
		errors.Is(err, models.ErrInvalidFieldValue),
		errors.Is(err, models.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error(), codeValidationFailed)
	default:
		respondError(w, http.StatusInternalServerError, "Internal error", codeInternal)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Health())
}

// dataResponse is the full-dataset payload.
type dataResponse struct {
	Data     []*models.Record `json:"data"`
	Version  string           `json:"version"`
	Username string           `json:"username,omitempty"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	records, version := s.store.Records()
	s.store.Touch(r.Header.Get(headerSession), username(r))
	respondJSON(w, http.StatusOK, dataResponse{
		Data:     records,
		Version:  version,
		Username: username(r),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": s.store.Version()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Stats())
}

// nextResponse carries the next assigned record, or done=true when nothing
// is left for this session.
type nextResponse struct {
	Done    bool           `json:"done"`
	Index   int            `json:"index,omitempty"`
	Record  *models.Record `json:"record,omitempty"`
	Version string         `json:"version,omitempty"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(w, r)
	index, rec, version, ok := s.store.AcquireNext(token, username(r))
	if !ok {
		respondJSON(w, http.StatusOK, nextResponse{Done: true})
		return
	}
	respondJSON(w, http.StatusOK, nextResponse{
		Index:   index,
		Record:  rec,
		Version: version,
	})
}

// recordResponse is a single-record payload.
type recordResponse struct {
	Index   int            `json:"index"`
	Record  *models.Record `json:"record"`
	Version string         `json:"version"`
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid record index", codeValidationFailed)
		return
	}
	token := sessionToken(w, r)
	rec, version, err := s.store.Get(index, token, username(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recordResponse{
		Index:   index,
		Record:  rec,
		Version: version,
	})
}

// updateRequest is the body of a record update. The expected version may
// come from the body or the X-Data-Version header; the header wins.
type updateRequest struct {
	Updates         map[string]any `json:"updates"`
	ExpectedVersion string         `json:"expected_version,omitempty"`
}

// updateResponse acknowledges an applied update.
type updateResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	SavedBy string `json:"saved_by,omitempty"`
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid record index", codeValidationFailed)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", codeValidationFailed)
		return
	}
	if len(req.Updates) == 0 {
		respondError(w, http.StatusBadRequest, "Missing updates", codeValidationFailed)
		return
	}
	expected := req.ExpectedVersion
	if v := r.Header.Get(headerVersion); v != "" {
		expected = v
	}

	token := sessionToken(w, r)
	version, err := s.store.ApplyUpdate(index, req.Updates, expected, username(r), token)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updateResponse{
		Status:  "success",
		Version: version,
		SavedBy: username(r),
	})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if token := r.Header.Get(headerSession); token != "" {
		s.store.Release(token)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// paragraphResponse carries one source-text paragraph.
type paragraphResponse struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
}

func (s *Server) handleLMParagraph(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	text, err := s.refs.Paragraph(ref)
	if err != nil {
		switch {
		case errors.Is(err, refsource.ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error(), codeNotFound)
		case errors.Is(err, refsource.ErrNotText):
			respondError(w, http.StatusBadRequest, err.Error(), codeValidationFailed)
		default:
			respondError(w, http.StatusInternalServerError, "Failed to read source text", codeInternal)
		}
		return
	}
	respondJSON(w, http.StatusOK, paragraphResponse{Ref: ref, Text: text})
}

// requireAdmin enforces the privileged-user check: the caller's username
// must match the configured admin identity. Real authentication sits in
// front of this service; this mirrors the legacy header comparison.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if username(r) != s.cfg.Review.AdminUser {
		respondError(w, http.StatusForbidden, "Only the admin user may do this", codeForbidden)
		return false
	}
	return true
}

// maxUploadBytes bounds admin dataset uploads.
const maxUploadBytes = 64 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload too large", codeValidationFailed)
		return
	}
	var records []*models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON file: expected an array of records", codeValidationFailed)
		return
	}

	version, err := s.store.ReplaceAll(records, r.Header.Get(headerVersion))
	if err != nil {
		if errors.Is(err, review.ErrConflict) {
			s.writeStoreError(w, err)
			return
		}
		// The dataset was replaced in memory but could not be persisted.
		respondErrorDetails(w, http.StatusInternalServerError,
			"Dataset replaced but not yet persisted", codeStorageError,
			map[string]any{"version": version})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"items":   len(records),
		"version": version,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	data, err := s.store.Snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to serialize dataset", codeInternal)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="links.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleForceSave(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if err := s.store.ForceSave(); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save dataset", codeStorageError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"version": s.store.Version(),
	})
}
