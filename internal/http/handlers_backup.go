package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spendwise/internal/services"
)

// handleExport streams the owner's backup file as a download.
func (s *Server) handleExport(c *gin.Context) {
	data, filename, err := s.svc.Backup.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	c.Data(http.StatusOK, "application/json", data)
}

// handleImport reads a backup file from the raw body. Records already in the
// ledger are skipped unless ?allow_duplicates=true.
func (s *Server) handleImport(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxImportBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "backup file is too large"})
			return
		}
		writeError(c, badRequest("read backup: %v", err))
		return
	}
	opts := services.ImportOptions{AllowDuplicates: boolQuery(c, "allow_duplicates")}
	res, err := s.svc.Backup.ImportAsync(c.Request.Context(), data, opts).Wait(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCloudBackup(c *gin.Context) {
	n, err := s.svc.Backup.CloudBackup(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": n})
}

func (s *Server) handleCloudStatus(c *gin.Context) {
	st, err := s.svc.Backup.CloudStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleCloudDelete(c *gin.Context) {
	if err := s.svc.Backup.CloudDelete(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCloudRestore(c *gin.Context) {
	opts := services.ImportOptions{AllowDuplicates: boolQuery(c, "allow_duplicates")}
	res, err := s.svc.Backup.CloudRestore(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
