package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
	"github.com/mohammad-safakhou/copydesk/internal/runtime"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

// runBudget bounds one whole run regardless of per-stage timeouts.
const runBudget = 30 * time.Minute

type RunsHandler struct {
	Orch   *pipeline.Orchestrator
	Store  *store.Store // optional archive, nil when Postgres is not configured
	logger *log.Logger
}

func NewRunsHandler(orch *pipeline.Orchestrator, st *store.Store) *RunsHandler {
	return &RunsHandler{
		Orch:   orch,
		Store:  st,
		logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte, authRequired bool) {
	if authRequired {
		g.Use(runtime.EchoAuthMiddleware(secret))
	}
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:run_id", h.get)
	g.GET("/:run_id/result", h.result)
	g.GET("/:run_id/artifacts", h.artifacts)
	g.POST("/:run_id/cancel", h.cancel)
	g.DELETE("/:run_id", h.evict)
}

// create accepts a content request, starts a run, and returns its id
// immediately. The pipeline executes in the background.
func (h *RunsHandler) create(c echo.Context) error {
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	run, err := h.Orch.StartRun(req.toRequest())
	if err != nil {
		var ve *pipeline.ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	userID := h.subject(c)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runBudget)
		defer cancel()
		if _, err := h.Orch.Execute(ctx, run); err != nil {
			h.logger.Printf("run %s: execute: %v", run.ID, err)
		}
		h.archive(run, userID)
	}()

	return c.JSON(http.StatusAccepted, IDResponse{ID: run.ID.String()})
}

func (h *RunsHandler) list(c echo.Context) error {
	runs := h.Orch.Tracker().List()
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunResponse(run))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RunsHandler) get(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newRunResponse(run))
}

// result returns the final artifact of a completed run: the optimized text
// plus its SEO metadata.
func (h *RunsHandler) result(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil {
		return err
	}
	st := run.Status()
	switch st.State {
	case pipeline.StateCompleted:
	case pipeline.StateFailed, pipeline.StateCancelled:
		return echo.NewHTTPError(http.StatusConflict, "run is "+string(st.State)+"; partial artifacts remain available")
	default:
		return echo.NewHTTPError(http.StatusConflict, "run not finished")
	}
	final, ok := run.FinalArtifact()
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "completed run has no final artifact")
	}
	var sources []pipeline.Source
	if research, ok := run.Artifact(pipeline.StageResearch); ok {
		sources = research.Sources
	}
	return c.JSON(http.StatusOK, ResultResponse{
		Text:            final.Text,
		Keywords:        final.Keywords,
		MetaDescription: final.MetaDescription,
		Sources:         sources,
	})
}

// artifacts exposes every recorded artifact, including those of failed
// runs, so a partial result stays inspectable.
func (h *RunsHandler) artifacts(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run.Artifacts())
}

func (h *RunsHandler) cancel(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil {
		return err
	}
	h.Orch.Cancel(run)
	return c.JSON(http.StatusAccepted, newRunResponse(run))
}

func (h *RunsHandler) evict(c echo.Context) error {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	if run, ok := h.Orch.Tracker().Get(id); ok {
		if !run.Status().State.Terminal() {
			return echo.NewHTTPError(http.StatusConflict, "run still in progress; cancel it first")
		}
	}
	if !h.Orch.Tracker().Evict(id) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RunsHandler) lookup(c echo.Context) (*pipeline.Run, error) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	run, ok := h.Orch.Tracker().Get(id)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return run, nil
}

func (h *RunsHandler) subject(c echo.Context) *string {
	if sub, ok := runtime.SubjectFromContext(c.Request().Context()); ok {
		return &sub
	}
	return nil
}

func (h *RunsHandler) archive(run *pipeline.Run, userID *string) {
	if h.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Store.ArchiveRun(ctx, run, userID); err != nil {
		h.logger.Printf("run %s: archive: %v", run.ID, err)
	}
}
