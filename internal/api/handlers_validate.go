// handlers_validate.go - On-demand dataset validation
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/logging"
)

// ValidateHandlerImpl implements the ValidateHandler interface
type ValidateHandlerImpl struct {
	newDataset func() *dataset.Dataset
	store      RunStore
	logger     *zap.Logger
}

// NewValidateHandler creates a validation handler. Each request scans into
// a fresh dataset from newDataset; reports are saved when store is set.
func NewValidateHandler(newDataset func() *dataset.Dataset, store RunStore, logger *zap.Logger) ValidateHandler {
	log := logging.OrNop(logger).Named("api")
	if newDataset == nil {
		newDataset = func() *dataset.Dataset { return dataset.New(dataset.WithLogger(log)) }
	}
	return &ValidateHandlerImpl{
		newDataset: newDataset,
		store:      store,
		logger:     log,
	}
}

type validateRequest struct {
	Dir string `json:"dir"`
}

// HandleValidate scans the requested directory, validates it and returns
// the report.
func (h *ValidateHandlerImpl) HandleValidate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Dir == "" {
		return NewValidationError("dir")
	}

	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return NewBadRequestError("invalid directory", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return NewBadRequestError("directory not accessible", err)
	}
	if !info.IsDir() {
		return NewBadRequestError("not a directory: "+req.Dir, nil)
	}

	ds := h.newDataset()
	if err := ds.Scan(dir); err != nil {
		return NewInternalError("failed to scan directory", err)
	}
	rep := ds.Validate(nil, nil)

	if h.store != nil {
		if err := h.store.SaveRun(c.Request().Context(), rep); err != nil {
			// The report is still returned; only the history misses it.
			h.logger.Warn("saving run failed", zap.String("run", rep.RunID), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, rep)
}
