package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/CodePrep/backend/internal/api/view"
	"github.com/GriffinCanCode/CodePrep/backend/internal/catalog"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/progress"
	"github.com/GriffinCanCode/CodePrep/backend/internal/tutor"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// Tutor generates tutoring sessions
type Tutor interface {
	Assess(ctx context.Context, in tutor.Input) (tutor.Output, error)
	Configured() bool
	BreakerState() resilience.State
}

// Deps are the collaborators the handlers serve
type Deps struct {
	Playgrounds *playground.Manager
	Catalog     *catalog.Catalog
	Progress    progress.Store
	Tutor       Tutor
	Metrics     *monitoring.Metrics
	Tracer      *tracing.Tracer
	Logger      *logging.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	playgrounds *playground.Manager
	catalog     *catalog.Catalog
	progress    progress.Store
	tutor       Tutor
	metrics     *monitoring.Metrics
	tracer      *tracing.Tracer
	policy      *bluemonday.Policy
	log         *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = monitoring.NewMetrics()
	}
	if d.Tracer == nil {
		d.Tracer = tracing.New("codeprep", d.Logger)
	}
	return &Handlers{
		playgrounds: d.Playgrounds,
		catalog:     d.Catalog,
		progress:    d.Progress,
		tutor:       d.Tutor,
		metrics:     d.Metrics,
		tracer:      d.Tracer,
		policy:      view.Policy(),
		log:         d.Logger.Component("api"),
	}
}

// Register mounts every route except the WebSocket stream
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.POST("/playgrounds", h.CreatePlayground)
	r.GET("/playgrounds", h.ListPlaygrounds)
	r.GET("/playgrounds/:id", h.GetPlayground)
	r.PUT("/playgrounds/:id/source", h.EditPlayground)
	r.POST("/playgrounds/:id/run", h.RunPlayground)
	r.POST("/playgrounds/:id/reset", h.ResetPlayground)
	r.DELETE("/playgrounds/:id", h.ClosePlayground)

	r.GET("/paths", h.ListPaths)
	r.GET("/paths/:id", h.GetPath)
	r.GET("/questions/:id", h.GetQuestion)
	r.GET("/challenges", h.ListChallenges)

	r.GET("/progress/:learner", h.GetProgress)
	r.DELETE("/progress/:learner", h.ResetProgress)
	r.PUT("/progress/:learner/:question", h.MarkProgress)
	r.DELETE("/progress/:learner/:question", h.UnmarkProgress)

	r.POST("/tutor", h.Tutor)
}

// Root handles the status check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "CodePrep Playground",
		"version": Version,
	})
}

// Health handles the detailed health check
func (h *Handlers) Health(c *gin.Context) {
	tutorStatus := gin.H{"configured": false}
	if h.tutor != nil {
		tutorStatus = gin.H{
			"configured": h.tutor.Configured(),
			"circuit":    h.tutor.BreakerState().String(),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"playgrounds": h.playgrounds.Stats(),
		"tutor":       tutorStatus,
		"metrics":     h.metrics.Snapshot(),
	})
}

// fail writes err with the status its kind maps to
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, playground.ErrNotFound),
		errors.Is(err, playground.ErrClosed),
		errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, playground.ErrTooManyPlaygrounds):
		status = http.StatusServiceUnavailable
	case errors.Is(err, progress.ErrInvalidID),
		errors.Is(err, playground.ErrInvalidID):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
