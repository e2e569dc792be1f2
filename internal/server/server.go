// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes reconciliation over HTTP. Each request runs its
// own workflow; the server keeps no state between requests.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pdiddy/facility-match/internal/reconcile"
	"github.com/pdiddy/facility-match/internal/report"
	"github.com/pdiddy/facility-match/internal/tabular"
	"github.com/pdiddy/facility-match/internal/workflow"
	"github.com/pdiddy/facility-match/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Server serves the reconciliation API.
type Server struct {
	cfg     types.Config
	log     zerolog.Logger
	version string
}

// New returns a Server. version is reported by /healthz.
func New(cfg types.Config, version string, log zerolog.Logger) *Server {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, log: log, version: version}
}

// Router builds the HTTP handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.limitBody())
	r.MaxMultipartMemory = s.cfg.Server.MaxUploadBytes

	r.GET("/healthz", s.Health)

	api := r.Group("/api/v1")
	api.POST("/reconcile", s.Reconcile)
	api.POST("/reconcile/upload", s.ReconcileUpload)
	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Server.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadBytes)
		}
		c.Next()
	}
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

// ReconcileRequest is the body of POST /api/v1/reconcile. Master and
// Candidate are arrays of objects, or objects holding such an array.
type ReconcileRequest struct {
	Master        json.RawMessage `json:"master"`
	Candidate     json.RawMessage `json:"candidate"`
	MasterName    string          `json:"master_name"`
	CandidateName string          `json:"candidate_name"`
	MasterKey     string          `json:"master_key"`
	CandidateKey  string          `json:"candidate_key"`

	// Threshold defaults to the configured threshold when omitted.
	Threshold *float64 `json:"threshold"`
}

// Reconcile matches two JSON collections and responds with a JSON report.
func (s *Server) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(c, fmt.Errorf("reading request: %w", err))
			return
		}
		s.fail(c, badRequest("decoding request: %v", err))
		return
	}

	master, err := decodeJSONCollection(req.Master, "master", req.MasterName)
	if err != nil {
		s.fail(c, err)
		return
	}
	candidate, err := decodeJSONCollection(req.Candidate, "candidate", req.CandidateName)
	if err != nil {
		s.fail(c, err)
		return
	}

	threshold := s.cfg.Match.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	run, err := s.run(c.Request.Context(), master, candidate, req.MasterKey, req.CandidateKey, threshold)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report.New(run.Run))
}

// ReconcileUpload matches two uploaded files and responds with the results
// as a file download.
func (s *Server) ReconcileUpload(c *gin.Context) {
	master, err := formCollection(c, "master")
	if err != nil {
		s.fail(c, err)
		return
	}
	candidate, err := formCollection(c, "candidate")
	if err != nil {
		s.fail(c, err)
		return
	}

	threshold := s.cfg.Match.Threshold
	if raw := strings.TrimSpace(c.PostForm("threshold")); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.fail(c, &reconcile.InvalidInputError{Field: "threshold", Message: fmt.Sprintf("threshold %q is not a number", raw)})
			return
		}
	}

	format := c.PostForm("format")
	if format == "" {
		format = s.cfg.Output.Format
	}
	if format == "" {
		format = tabular.FormatCSV
	}

	res, err := s.run(c.Request.Context(), master, candidate, c.PostForm("master_key"), c.PostForm("candidate_key"), threshold)
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := res.ctrl.Export(&buf, format); err != nil {
		s.fail(c, err)
		return
	}

	ctype, ext := tabular.ContentType(format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="facility-match-results%s"`, ext))
	c.Header("X-Match-Total", strconv.Itoa(res.Run.Summary.Total))
	c.Header("X-Match-Matched", strconv.Itoa(res.Run.Summary.Matched))
	c.Data(http.StatusOK, ctype, buf.Bytes())
}

type runResult struct {
	workflow.Run
	ctrl *workflow.Controller
}

// run drives a fresh workflow. Empty keys are replaced by the suggested
// key column of each list.
func (s *Server) run(ctx context.Context, master, candidate types.Collection, masterKey, candidateKey string, threshold float64) (runResult, error) {
	ctrl := workflow.New(s.cfg, s.log)
	if err := ctrl.SetCollections(master, candidate); err != nil {
		return runResult{}, err
	}

	if masterKey == "" || candidateKey == "" {
		mk, ck, err := ctrl.Suggest()
		if err != nil {
			return runResult{}, err
		}
		if masterKey == "" {
			masterKey = mk
		}
		if candidateKey == "" {
			candidateKey = ck
		}
	}

	if err := ctrl.Select(masterKey, candidateKey, threshold); err != nil {
		return runResult{}, err
	}
	run, err := ctrl.Run(ctx)
	if err != nil {
		return runResult{}, err
	}
	return runResult{Run: run, ctrl: ctrl}, nil
}

func decodeJSONCollection(raw json.RawMessage, side, name string) (types.Collection, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: side, Field: side, Message: "collection is missing"}
	}
	col, err := tabular.Decode(bytes.NewReader(raw), tabular.FormatJSON, types.SourceConfig{})
	if err != nil {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: side, Field: side, Message: err.Error()}
	}
	col.Name = name
	if col.Name == "" {
		col.Name = side
	}
	return col, nil
}

func formCollection(c *gin.Context, field string) (types.Collection, error) {
	fh, err := c.FormFile(field)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return types.Collection{}, fmt.Errorf("reading upload: %w", err)
	}
	if err != nil {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: field, Field: field, Message: fmt.Sprintf("file %q is missing: %v", field, err)}
	}
	return decodeUpload(fh, field, c.PostForm(field+"_sheet"))
}

func decodeUpload(fh *multipart.FileHeader, side, sheet string) (types.Collection, error) {
	format, err := tabular.FormatFromPath(fh.Filename)
	if err != nil {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: side, Field: side, Message: err.Error()}
	}
	if format == tabular.FormatSQLite {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: side, Field: side, Message: "database files cannot be uploaded"}
	}

	f, err := fh.Open()
	if err != nil {
		return types.Collection{}, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	col, err := tabular.Decode(f, format, types.SourceConfig{Sheet: sheet})
	if err != nil {
		return types.Collection{}, &reconcile.InvalidInputError{Collection: side, Field: side, Message: fmt.Sprintf("reading %s: %v", fh.Filename, err)}
	}
	col.Name = fh.Filename
	return col, nil
}

// fail maps err to a status: invalid input is the caller's fault, anything
// else is ours.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, reconcile.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}

	ev := s.log.Warn()
	if status == http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).Int("status", status).Str("path", c.Request.URL.Path).Msg("request failed")

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(format string, args ...any) error {
	return &reconcile.InvalidInputError{Field: "body", Message: fmt.Sprintf(format, args...)}
}
