// handlers_runs.go - Run history handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cropmodel/dataset/internal/reportstore"
)

const defaultRunLimit = 20

// RunsHandlerImpl implements the RunsHandler interface
type RunsHandlerImpl struct {
	store RunStore
}

// NewRunsHandler creates a run history handler. A nil store answers every
// request with 503.
func NewRunsHandler(store RunStore) RunsHandler {
	return &RunsHandlerImpl{store: store}
}

func (h *RunsHandlerImpl) available() error {
	if h.store == nil {
		return NewServiceUnavailableError("run history is disabled")
	}
	return nil
}

func runError(id string, err error) error {
	if errors.Is(err, reportstore.ErrRunNotFound) {
		return NewNotFoundError("run", id)
	}
	return NewInternalError("failed to load run", err)
}

// HandleListRuns returns the most recent runs.
func (h *RunsHandlerImpl) HandleListRuns(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}

	limit := defaultRunLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	runs, err := h.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list runs", err)
	}
	return c.JSON(http.StatusOK, runs)
}

// HandleGetRun returns the full report of a run.
func (h *RunsHandlerImpl) HandleGetRun(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	id := c.Param("id")

	rep, err := h.store.GetRun(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// HandleGetRunDiagnostics returns every error and warning of a run.
func (h *RunsHandlerImpl) HandleGetRunDiagnostics(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	id := c.Param("id")

	diags, err := h.store.Diagnostics(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runId":       id,
		"diagnostics": diags,
		"total":       len(diags),
	})
}

// HandleGetRunMsgpack returns the full report of a run as MessagePack.
func (h *RunsHandlerImpl) HandleGetRunMsgpack(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	id := c.Param("id")

	rep, err := h.store.GetRun(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}

	data, err := msgpack.Marshal(rep)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
