package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/valpere/space2thread/internal/clip"
	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/report"
	"github.com/valpere/space2thread/internal/scout"
	"github.com/valpere/space2thread/internal/store"
	"github.com/valpere/space2thread/internal/thread"
)

type scoutRequest struct {
	Username string `json:"username"`
}

type threadRequest struct {
	Transcript string `json:"transcript"`
	Segments   string `json:"segments"`
}

type processRequest struct {
	URL string `json:"url" binding:"required"`
}

type jobDetail struct {
	store.Job
	ThreadResult *thread.Outcome `json:"thread_result"`
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// fail maps an error to 404 for not-found cases and 500 otherwise.
func (s *Server) fail(c *gin.Context, scope string, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, scout.ErrNotFound) || errors.Is(err, clip.ErrNotFound) {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error(c.Request.Context(), "%s Error: %v", scope, err)
	detail(c, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.deps.Catalog.Models(c.Request.Context())})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	doc, err := s.deps.Config.Load()
	if err != nil {
		s.fail(c, "Config", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var u config.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.deps.Config.Update(u)
	if errors.Is(err, config.ErrInvalidKey) {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.fail(c, "Config", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleScout(c *gin.Context) {
	if s.deps.Scout == nil {
		detail(c, http.StatusInternalServerError, "APIFY_API_TOKEN not found in environment variables")
		return
	}
	var req scoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	username := req.Username
	if username == "" {
		username = s.deps.DefaultUsername
	}

	url, err := s.deps.Scout.LatestSpace(c.Request.Context(), username)
	if err != nil {
		s.fail(c, "Scout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleGenerateThread(c *gin.Context) {
	var req threadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	out, err := s.deps.Threads.Generate(ctx, req.Transcript, req.Segments)
	if err != nil {
		s.fail(c, "Thread Generation", err)
		return
	}

	if s.deps.History != nil {
		if _, err := s.deps.History.SaveThreadRun(ctx, "", out); err != nil {
			s.log.Warn(ctx, "Failed to save thread run: %v", err)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.deps.Pipeline.Process(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, "Process", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRenderClip(c *gin.Context) {
	req := clip.Request{
		Layout:       clip.LayoutCenteredWaveform,
		Title:        "Space2Thread",
		LogoPosition: "top-right",
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	output, err := s.deps.Clips.Render(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "Clip Render", err)
		return
	}
	filename := filepath.Base(output)
	c.JSON(http.StatusOK, gin.H{"clip_url": "/api/clips/" + filename, "filename": filename})
}

func (s *Server) handleUploadLogo(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	f, err := header.Open()
	if err != nil {
		s.fail(c, "Logo Upload", err)
		return
	}
	defer f.Close()

	path, filename, err := s.deps.Clips.SaveLogo(header.Filename, f)
	if err != nil {
		s.fail(c, "Logo Upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logo_path": path, "filename": filename})
}

func (s *Server) handleServeClip(c *gin.Context) {
	filename := c.Param("filename")
	path, err := s.deps.Clips.ClipPath(filename)
	if err != nil {
		detail(c, http.StatusNotFound, "Clip not found")
		return
	}
	c.Header("Content-Type", "video/mp4")
	c.FileAttachment(path, filename)
}

func (s *Server) handleListJobs(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := s.deps.History.ListJobs(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "Jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleGetJob(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	ctx := c.Request.Context()
	job, err := s.deps.History.GetJob(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, "Jobs", err)
		return
	}

	resp := jobDetail{Job: *job}
	run, err := s.deps.History.LatestThreadRun(ctx, job.ID)
	switch {
	case err == nil:
		resp.ThreadResult = &run.Outcome
	case !errors.Is(err, store.ErrNotFound):
		s.fail(c, "Jobs", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleJobReport(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	job, err := s.deps.History.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "Jobs", err)
		return
	}
	title := "Space report"
	if job.SourceURL != "" {
		title = job.SourceURL
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(report.ToPage(title, job.Report)))
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.deps.History == nil {
		detail(c, http.StatusInternalServerError, "run history is not configured")
		return false
	}
	return true
}
