package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/engine"
	"github.com/banshee-data/incident.report/internal/events"
	"github.com/banshee-data/incident.report/internal/httputil"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/render"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/security"
	"github.com/banshee-data/incident.report/internal/version"
	"github.com/banshee-data/incident.report/internal/video"
)

// Accepted upload extensions.
var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tif", ".tiff"}
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}
)

// formMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const formMemory = 32 << 20

// uploadField is the multipart field carrying the media file.
const uploadField = "file"

// caseResponse is a stored case with its decoded report.
type caseResponse struct {
	db.CaseRecord
	Report json.RawMessage `json:"report"`
}

// readUpload enforces the size limit and extension allow-list and returns
// the file bytes and a unique sanitised name. It writes the error response
// itself and returns ok=false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, exts []string) (data []byte, name string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.PayloadTooLarge(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return nil, "", false
		}
		httputil.BadRequest(w, "expected a multipart form upload")
		return nil, "", false
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("missing %q file field", uploadField))
		return nil, "", false
	}
	defer file.Close()

	if !security.HasExtension(header.Filename, exts) {
		httputil.UnsupportedMediaType(w, fmt.Sprintf("unsupported file type %q", filepath.Ext(header.Filename)))
		return nil, "", false
	}
	data, err = io.ReadAll(file)
	if err != nil {
		httputil.BadRequest(w, "failed to read upload")
		return nil, "", false
	}
	return data, s.uploadID() + "_" + security.SanitizeFilename(header.Filename), true
}

// storeUpload writes the original media into the evidence directory.
func (s *Server) storeUpload(name string, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	path, err := security.EvidencePath(s.storageDir, name)
	if err != nil {
		return "", err
	}
	if err := s.fs.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r, ImageExtensions)
	if !ok {
		return
	}
	who := owner(r)

	rep, err := s.images.Run(r.Context(), data, name)
	switch {
	case errors.Is(err, engine.ErrDecode):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		monitoring.Warnf("[API] image analysis failed for %s: %v", name, err)
		httputil.BadGateway(w, "image analysis failed")
		return
	}
	// A cached report keeps its first original name, which is already on disk.
	if rep.Evidence.OriginalImage == name {
		if _, err := s.storeUpload(name, data); err != nil {
			monitoring.Warnf("[API] %v", err)
		}
	}

	now := s.clock.Now()
	if err := s.store.SaveImageCase(r.Context(), rep, who, now); err != nil {
		httputil.InternalServerError(w, "failed to save case")
		monitoring.Warnf("[API] %v", err)
		return
	}
	s.publish(r, events.ImageCase(rep, who, now))
	httputil.WriteJSON(w, http.StatusCreated, rep)
}

func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r, VideoExtensions)
	if !ok {
		return
	}
	who := owner(r)
	handledBy := r.FormValue("handled_by")
	if handledBy == "" && who != db.DefaultOwner {
		handledBy = who
	}

	path, err := s.storeUpload(name, data)
	if err != nil {
		monitoring.Warnf("[API] %v", err)
		httputil.InternalServerError(w, "failed to store upload")
		return
	}

	rep, err := s.videos.Run(r.Context(), path, handledBy)
	switch {
	case errors.Is(err, video.ErrMedia):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		monitoring.Warnf("[API] video analysis failed for %s: %v", name, err)
		httputil.BadGateway(w, "video analysis failed")
		return
	}

	now := s.clock.Now()
	if err := s.store.SaveVideoCase(r.Context(), rep, who, now); err != nil {
		httputil.InternalServerError(w, "failed to save case")
		monitoring.Warnf("[API] %v", err)
		return
	}
	s.publish(r, events.VideoCase(rep, who, now))
	httputil.WriteJSON(w, http.StatusCreated, rep)
}

func (s *Server) publish(r *http.Request, e events.Event) {
	if err := s.events.Publish(r.Context(), e); err != nil {
		monitoring.Warnf("[API] failed to publish %s for case %s: %v", e.Type, e.CaseID, err)
	}
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	recs, err := s.store.ListCases(r.Context(), owner(r), limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list cases")
		return
	}
	httputil.WriteJSONOK(w, recs)
}

// loadCase fetches the requested case, writing 404 or 500 on failure.
func (s *Server) loadCase(w http.ResponseWriter, r *http.Request) (*db.CaseRecord, bool) {
	rec, err := s.store.GetCase(r.Context(), r.PathValue("id"), owner(r))
	if errors.Is(err, db.ErrCaseNotFound) {
		httputil.NotFound(w, "case not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load case")
		return nil, false
	}
	return rec, true
}

// loadVideoCase is loadCase restricted to video cases.
func (s *Server) loadVideoCase(w http.ResponseWriter, r *http.Request) (*report.VideoReport, bool) {
	rec, ok := s.loadCase(w, r)
	if !ok {
		return nil, false
	}
	if rec.Kind != report.KindVideo {
		httputil.BadRequest(w, "not a video case")
		return nil, false
	}
	rep, err := rec.VideoReport()
	if err != nil {
		httputil.InternalServerError(w, "failed to decode report")
		return nil, false
	}
	return rep, true
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCase(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, caseResponse{CaseRecord: *rec, Report: json.RawMessage(rec.ReportJSON)})
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteCase(r.Context(), r.PathValue("id"), owner(r))
	if errors.Is(err, db.ErrCaseNotFound) {
		httputil.NotFound(w, "case not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to delete case")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reportPDF(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCase(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	var err error
	switch rec.Kind {
	case report.KindVideo:
		var rep *report.VideoReport
		if rep, err = rec.VideoReport(); err == nil {
			err = render.VideoPDF(&buf, rep)
		}
	default:
		var rep *report.CaseReport
		if rep, err = rec.ImageReport(); err == nil {
			annotated, _ := s.fs.ReadFile(filepath.Join(s.storageDir, rep.Evidence.AnnotatedImage))
			err = render.CasePDF(&buf, rep, annotated)
		}
	}
	if err != nil {
		monitoring.Warnf("[API] pdf for case %s: %v", rec.CaseID, err)
		httputil.InternalServerError(w, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=case_%s.pdf", rec.CaseID))
	w.Write(buf.Bytes())
}

func (s *Server) timelineChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadVideoCase(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.TimelineHTML(&buf, rep); err != nil {
		httputil.InternalServerError(w, "failed to render timeline")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// severityChart plots per-frame severity for videos and per-vehicle fault
// for images.
func (s *Server) severityChart(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCase(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	var err error
	switch rec.Kind {
	case report.KindVideo:
		var rep *report.VideoReport
		if rep, err = rec.VideoReport(); err == nil {
			err = render.SeverityPNG(&buf, rep)
		}
	default:
		var rep *report.CaseReport
		if rep, err = rec.ImageReport(); err == nil {
			err = render.FaultPNG(&buf, rep)
		}
	}
	if errors.Is(err, render.ErrNoData) {
		httputil.NotFound(w, "nothing to plot for this case")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) getCustody(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetCustody(r.Context(), r.PathValue("id"), owner(r))
	if errors.Is(err, db.ErrCaseNotFound) {
		httputil.NotFound(w, "custody record not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load custody record")
		return
	}
	httputil.WriteJSONOK(w, rec)
}

// verifyCustody re-hashes the stored video and frames against the custody
// record saved with the case.
func (s *Server) verifyCustody(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.GetCustody(r.Context(), id, owner(r))
	if errors.Is(err, db.ErrCaseNotFound) {
		httputil.NotFound(w, "custody record not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load custody record")
		return
	}

	videoPath, err := security.EvidencePath(s.storageDir, rec.Evidence.VideoFile)
	if err != nil {
		httputil.InternalServerError(w, "invalid evidence reference")
		return
	}
	framesDir := video.CaseFramesDir(s.storageDir, rec.CaseID)
	v := video.CustodyRecorder{FS: s.fs}.Verify(*rec, videoPath, framesDir)
	if !v.Verified {
		monitoring.Warnf("[API] custody verification failed for case %s: %d mismatches", id, len(v.Mismatches))
	}
	httputil.WriteJSONOK(w, v)
}

func (s *Server) serveEvidence(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, s.storageDir, r.PathValue("file"))
}

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadCase(w, r); !ok {
		return
	}
	s.serveFile(w, r, video.CaseFramesDir(s.storageDir, r.PathValue("id")), r.PathValue("file"))
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, dir, name string) {
	path, err := security.EvidencePath(dir, name)
	if err != nil {
		httputil.BadRequest(w, "invalid file name")
		return
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		httputil.NotFound(w, "file not found")
		return
	}
	http.ServeContent(w, r, name, s.clock.Now(), bytes.NewReader(data))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":   "ok",
		"version":  version.String(),
		"database": "ok",
	}
	code := http.StatusOK
	if err := s.store.PingContext(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}
