package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/internal/store"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

const defaultHistoryLimit = 20

// Runner is the subset of the workflow runner the handlers drive.
type Runner interface {
	Profiles() []string
	RunProfile(ctx context.Context, name string) (*model.RunResult, error)
}

// RunsHandler exposes workflow run results and on-demand runs.
type RunsHandler struct {
	logger *zap.Logger
	runner Runner
	store  store.Store
}

func NewRunsHandler(logger *zap.Logger, runner Runner, st store.Store) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{logger: logger, runner: runner, store: st}
}

func (h *RunsHandler) knownProfile(name string) bool {
	for _, p := range h.runner.Profiles() {
		if p == name {
			return true
		}
	}
	return false
}

// ListLatest returns the last run of every profile. Profiles that have not run
// yet are listed with a nil result.
// GET /api/v1/runs
func (h *RunsHandler) ListLatest(c *fiber.Ctx) error {
	out := make([]ProfileStatus, 0, len(h.runner.Profiles()))
	for _, name := range h.runner.Profiles() {
		run, err := h.store.LastRun(c.Context(), name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			out = append(out, ProfileStatus{Profile: name})
		case err != nil:
			h.logger.Error("api.runs.last_failed", zap.String("profile", name), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		default:
			out = append(out, ProfileStatus{Profile: name, LastRun: toRunResponse(run)})
		}
	}
	return c.JSON(fiber.Map{"profiles": out})
}

// History returns recent runs of one profile, newest first.
// GET /api/v1/runs/:profile?limit=N
func (h *RunsHandler) History(c *fiber.Ctx) error {
	name := c.Params("profile")
	if !h.knownProfile(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown profile"})
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
	}

	runs, err := h.store.RecentRuns(c.Context(), name, limit)
	if err != nil {
		h.logger.Error("api.runs.history_failed", zap.String("profile", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	resp := make([]RunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, *toRunResponse(&runs[i]))
	}
	return c.JSON(fiber.Map{"profile": name, "runs": resp})
}

// Trigger runs one profile now and returns its result. A failed workflow is
// still a 200: the failure is the result.
// POST /api/v1/runs/:profile
func (h *RunsHandler) Trigger(c *fiber.Ctx) error {
	name := c.Params("profile")
	if !h.knownProfile(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown profile"})
	}

	h.logger.Info("api.runs.triggered", zap.String("profile", name))
	run, err := h.runner.RunProfile(c.UserContext(), name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(toRunResponse(run))
}
