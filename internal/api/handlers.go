package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fsrecon/internal/parser"
	"fsrecon/internal/pipeline"
)

// handleReconcile accepts a DSD archive and a free-text filing and queues a
// reconciliation job.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	// Two uploads per request; extra 1MB covers form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*2+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	dsdData, dsdName, err := s.readUpload(r, "dsd_file")
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if ext := strings.ToLower(filepath.Ext(dsdName)); ext != ".dsd" && ext != ".zip" {
		jsonError(w, fmt.Sprintf("dsd_file must be a .dsd archive, got %s", ext), http.StatusBadRequest)
		return
	}

	targetData, targetName, err := s.readUpload(r, "en_file")
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if !parser.IsSupportedExtension(targetName) {
		jsonError(w, fmt.Sprintf("unsupported en_file type: %s", filepath.Ext(targetName)), http.StatusBadRequest)
		return
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:             pipeline.NewJobID(),
		Status:         pipeline.StatusQueued,
		Phase:          "queued",
		DSDFilename:    dsdName,
		TargetFilename: targetName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	job.SetFileData(dsdData, targetData)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"poll_url":   fmt.Sprintf("/api/jobs/%s/status", job.ID),
		"report_url": fmt.Sprintf("/api/jobs/%s/report", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleJobReport serves the rendered workbook once the job completed.
func (s *Server) handleJobReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if snap.Status == pipeline.StatusFailed {
		jsonError(w, "job failed, no report available", http.StatusConflict)
		return
	}
	outPath := job.OutputFile()
	if snap.Status != pipeline.StatusCompleted || outPath == "" {
		jsonError(w, "report not ready", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(outPath)))
	http.ServeFile(w, r, outPath)
}

// sizeError marks an upload that exceeded MaxUploadBytes.
type sizeError struct{ field string }

func (e *sizeError) Error() string {
	return fmt.Sprintf("%s exceeds max upload size", e.field)
}

func statusFor(err error) int {
	if _, ok := err.(*sizeError); ok {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%s is required: %s", field, err)
	}
	defer file.Close()
	return s.readLimited(file, header, field)
}

func (s *Server) readLimited(file multipart.File, header *multipart.FileHeader, field string) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s", field)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, "", &sizeError{field: field}
	}
	return data, sanitizeFilename(header.Filename), nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
