package http

import (
	"net/http"

	"github.com/GriffinCanCode/CodePrep/backend/internal/api/view"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxSourceBytes bounds a submitted source buffer
const MaxSourceBytes = 256 << 10

// CreateRequest initialises a playground. A question id takes its starter
// source and language mode from the catalog and wins over initial_source.
type CreateRequest struct {
	InitialSource string `json:"initial_source"`
	UIMode        bool   `json:"ui_mode"`
	QuestionID    string `json:"question_id"`
}

// EditRequest replaces the source buffer
type EditRequest struct {
	Source *string `json:"source" binding:"required"`
}

// CreatePlayground handles POST /playgrounds
func (h *Handlers) CreatePlayground(c *gin.Context) {
	var req CreateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	source := req.InitialSource
	var opts []playground.Option
	if req.QuestionID != "" {
		starter, mode, err := h.catalog.Starter(req.QuestionID)
		if err != nil {
			h.fail(c, err)
			return
		}
		source = starter
		if mode != sandbox.ModeAuto {
			opts = append(opts, playground.WithMode(mode))
		}
	}
	if len(source) > MaxSourceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "source too large"})
		return
	}

	p, err := h.playgrounds.Create(source, req.UIMode, opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("playground created",
		append([]zap.Field{zap.String("playground_id", p.ID()), zap.String("question_id", req.QuestionID)},
			tracing.Fields(c.Request.Context())...)...)
	c.JSON(http.StatusCreated, view.Snapshot(h.policy, p.Snapshot()))
}

// ListPlaygrounds handles GET /playgrounds
func (h *Handlers) ListPlaygrounds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"playgrounds": view.Snapshots(h.policy, h.playgrounds.List()),
		"stats":       h.playgrounds.Stats(),
	})
}

// GetPlayground handles GET /playgrounds/:id
func (h *Handlers) GetPlayground(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view.Snapshot(h.policy, p.Snapshot()))
}

// EditPlayground handles PUT /playgrounds/:id/source
func (h *Handlers) EditPlayground(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(*req.Source) > MaxSourceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "source too large"})
		return
	}
	if err := p.Edit(*req.Source); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot(h.policy, p.Snapshot()))
}

// RunPlayground handles POST /playgrounds/:id/run. User code faults are
// part of the snapshot, so a faulting run still answers 200.
func (h *Handlers) RunPlayground(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}

	span, ctx := h.tracer.StartSpan(c.Request.Context(), "playground.run")
	span.SetTag("playground_id", p.ID())
	defer span.Finish()

	snap, err := p.Run(ctx)
	if err != nil {
		span.SetError(err)
		h.fail(c, err)
		return
	}
	span.SetTag("state", string(snap.State))
	if snap.Fault != nil {
		span.SetTag("fault_stage", string(snap.Fault.Stage))
	}
	c.JSON(http.StatusOK, view.Snapshot(h.policy, snap))
}

// ResetPlayground handles POST /playgrounds/:id/reset
func (h *Handlers) ResetPlayground(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := p.Reset(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot(h.policy, p.Snapshot()))
}

// ClosePlayground handles DELETE /playgrounds/:id
func (h *Handlers) ClosePlayground(c *gin.Context) {
	id := c.Param("id")
	if err := h.playgrounds.Delete(id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
	})
}

func (h *Handlers) lookup(c *gin.Context) (*playground.Playground, bool) {
	p, err := h.playgrounds.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return p, true
}
