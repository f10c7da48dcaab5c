package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/CodePrep/backend/internal/tutor"
	"github.com/gin-gonic/gin"
)

// ListPaths handles GET /paths
func (h *Handlers) ListPaths(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"paths": h.catalog.Paths()})
}

// GetPath handles GET /paths/:id
func (h *Handlers) GetPath(c *gin.Context) {
	p, err := h.catalog.Path(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetQuestion handles GET /questions/:id
func (h *Handlers) GetQuestion(c *gin.Context) {
	q, err := h.catalog.Question(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// ListChallenges handles GET /challenges
func (h *Handlers) ListChallenges(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"challenges": h.catalog.CodingChallenges()})
}

// MarkRequest optionally clears a completion instead of setting it
type MarkRequest struct {
	Done *bool `json:"done"`
}

// GetProgress handles GET /progress/:learner
func (h *Handlers) GetProgress(c *gin.Context) {
	learner := c.Param("learner")
	done, err := h.progress.Completed(c.Request.Context(), learner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"learner":   learner,
		"completed": done,
	})
}

// MarkProgress handles PUT /progress/:learner/:question
func (h *Handlers) MarkProgress(c *gin.Context) {
	done := true
	if c.Request.ContentLength != 0 {
		var req MarkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Done != nil {
			done = *req.Done
		}
	}
	h.mark(c, done)
}

// UnmarkProgress handles DELETE /progress/:learner/:question
func (h *Handlers) UnmarkProgress(c *gin.Context) {
	h.mark(c, false)
}

func (h *Handlers) mark(c *gin.Context, done bool) {
	learner, question := c.Param("learner"), c.Param("question")
	if _, err := h.catalog.Question(question); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.progress.Mark(c.Request.Context(), learner, question, done); err != nil {
		h.fail(c, err)
		return
	}
	h.GetProgress(c)
}

// ResetProgress handles DELETE /progress/:learner
func (h *Handlers) ResetProgress(c *gin.Context) {
	if err := h.progress.Reset(c.Request.Context(), c.Param("learner")); err != nil {
		h.fail(c, err)
		return
	}
	h.GetProgress(c)
}

// Tutor handles POST /tutor. Answers mirror the tutor form: data on
// success, a single error message otherwise.
func (h *Handlers) Tutor(c *gin.Context) {
	var in tutor.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input."})
		return
	}
	if err := in.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input.", "detail": err.Error()})
		return
	}
	if h.tutor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": tutor.FailureMessage})
		return
	}

	span, ctx := h.tracer.StartSpan(c.Request.Context(), "tutor.assess")
	span.SetTag("topic", in.JavascriptTopic)
	defer span.Finish()

	out, err := h.tutor.Assess(ctx, in)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"data": out})
	case errors.Is(err, tutor.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input.", "detail": err.Error()})
	case errors.Is(err, tutor.ErrNotConfigured):
		span.SetError(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": tutor.FailureMessage})
	default:
		span.SetError(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": tutor.FailureMessage})
	}
}
