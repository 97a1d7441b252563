package server

import (
	"encoding/hex"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/twizmwazin/pap/pkg/store"
)

func parseID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint32(id), true
}

// SubmitRequest is the body of POST /v1/pipelines.
type SubmitRequest struct {
	Config store.Config         `json:"config" binding:"required"`
	Files  map[string][]byte    `json:"files"`
}

// submitPipeline handles POST /v1/pipelines: validates the submission
// against the registry, persists it, and launches the Executor Engine.
// No rows are written if validation fails.
func (s *Server) submitPipeline(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.validate(req.Config); err != nil {
		writeError(c, err)
		return
	}

	sub := &store.Submission{Config: req.Config, Files: req.Files}
	status, err := s.db.InsertPipeline(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}

	s.launch(status.ID)
	c.JSON(http.StatusCreated, status)
}

func (s *Server) getPipeline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	status, err := s.db.GetPipeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) listPipelines(c *gin.Context) {
	ids, err := s.db.ListPipelines(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pipelines": ids})
}

func (s *Server) cancelPipeline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.db.CancelPipeline(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (s *Server) deletePipeline(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	if cancel, running := s.running[id]; running {
		cancel()
	}
	s.mu.Unlock()
	if err := s.db.DeletePipeline(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	status, err := s.db.GetJob(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) listJobs(c *gin.Context) {
	ids, err := s.db.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": ids})
}

func (s *Server) cancelJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.db.CancelJob(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (s *Server) getStepLog(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	log, err := s.db.GetStepLog(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", log)
}

func (s *Server) getObject(c *gin.Context) {
	namespace := c.Param("namespace")
	key, err := hex.DecodeString(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key must be hex-encoded"})
		return
	}
	value, err := s.db.GetObject(c.Request.Context(), namespace, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", value)
}

func (s *Server) putObject(c *gin.Context) {
	namespace := c.Param("namespace")
	key, err := hex.DecodeString(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key must be hex-encoded"})
		return
	}
	value, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if err := s.db.PutObject(c.Request.Context(), namespace, key, value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}
