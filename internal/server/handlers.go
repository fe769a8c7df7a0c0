package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/scan"
	"github.com/hyperjump/kurabe/internal/storage"
	"go.uber.org/zap"
)

const defaultPageSize = 50

func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not read file")
		return
	}

	s.logger.Debug("scan request",
		zap.String("user_id", userID),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(content)))

	result, err := s.scanner.SubmitScan(r.Context(), &models.Upload{Filename: header.Filename, Content: content}, userID)
	if err != nil {
		s.respondScanError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) respondScanError(w http.ResponseWriter, err error) {
	var pe *extract.ParseError
	switch {
	case errors.Is(err, scan.ErrInsufficientCredits):
		s.respondError(w, http.StatusPaymentRequired, "insufficient credits")
	case errors.As(err, &pe):
		s.respondError(w, http.StatusUnprocessableEntity, "could not process file: "+pe.Error())
	case errors.Is(err, scan.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, "user not found")
	default:
		s.logger.Error("scan failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "scan failed")
	}
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	log, err := s.storage.GetScanLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "scan not found")
		return
	}
	s.respondJSON(w, http.StatusOK, log)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"offset": offset, "limit": limit, "documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	minScore := 0.0
	if v := r.URL.Query().Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.respondError(w, http.StatusBadRequest, "min_score must be a number in [0, 1]")
			return
		}
		minScore = f
	}
	if _, err := s.storage.GetDocument(r.Context(), id); err != nil {
		s.respondLookupError(w, err, "document not found")
		return
	}
	related, err := s.storage.ListMatchesForDocument(r.Context(), id, minScore)
	if err != nil {
		s.logger.Error("list matches failed", zap.String("document_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if related == nil {
		related = []*models.RelatedDocument{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": id, "matches": related})
}

type createUserRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		s.respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	user, err := s.users.ProvisionUser(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("create user failed", zap.String("username", req.Username), zap.Error(err))
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

// handleGetUser refreshes the daily allowance before returning the balance.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.users.ResetIfDue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, err, "user not found")
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserScans(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if _, err := s.storage.GetUser(r.Context(), id); err != nil {
		s.respondLookupError(w, err, "user not found")
		return
	}
	logs, err := s.storage.ListScanLogs(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("list scans failed", zap.String("user_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*models.ScanLog{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"user_id": id, "scans": logs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents": stats.Documents,
		"matches":   stats.Matches,
		"scan_logs": stats.ScanLogs,
		"users":     stats.Users,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"match_threshold":    s.config.Scan.MatchThreshold,
			"top_k":              s.config.Scan.TopK,
			"primary_provider":   providerStatus(s.config.Providers.Primary.Name, s.config.Providers.Primary.Enabled()),
			"secondary_provider": providerStatus(s.config.Providers.Secondary.Name, s.config.Providers.Secondary.Enabled()),
			"database_path":      s.config.Storage.DatabasePath,
		}
		if size, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = size
		}
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func providerStatus(name string, enabled bool) map[string]interface{} {
	return map[string]interface{}{"name": name, "enabled": enabled}
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("lookup failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
