package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"cymatics/internal/history"
	"cymatics/internal/jobs"
	"cymatics/internal/logging"
	"cymatics/internal/textutil"
)

// maxJobsLimit caps GET /v1/jobs.
const maxJobsLimit = 500

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.opts.Version})
}

func (s *Server) transcribe(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Multipart field \"file\" is required")
	}
	name := textutil.SanitizeFileName(filepath.Base(strings.TrimSpace(fh.Filename)))
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Filename is required")
	}
	if !jobs.Supported(name) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unsupported file type: %s. Supported: %s",
			strings.ToLower(filepath.Ext(name)), strings.Join(jobs.SupportedExtensions(), ", ")))
	}

	id := uuid.NewString()[:8]
	dest := id + "_" + name
	if err := saveUpload(fh, s.backend.IncomingDir(), dest); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err)).SetInternal(err)
	}

	logging.WithContext(c.Request().Context(), s.logger).Info("upload queued",
		logging.String(logging.FieldJobFile, dest),
		logging.Int64("size", fh.Size),
		logging.String(logging.FieldEventType, "upload_queued"),
	)
	return c.JSON(http.StatusAccepted, TranscribeResponse{ID: id, Status: "queued", Filename: dest})
}

// saveUpload streams fh into dir under a hidden name and renames it to dest.
func saveUpload(fh *multipart.FileHeader, dir, dest string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "."+dest+".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, dest)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Server) cycleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.backend.QueueStatus())
}

func (s *Server) jobs(c echo.Context) error {
	limit := 20
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxJobsLimit)
	}
	entries, counts, err := s.backend.RecentJobs(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable").SetInternal(err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, JobsResponse{Jobs: entries, Counts: counts})
}

func (s *Server) unloadModel(c echo.Context) error {
	s.backend.UnloadModel()
	return c.JSON(http.StatusOK, s.backend.QueueStatus())
}
