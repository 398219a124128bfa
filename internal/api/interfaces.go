// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/cropmodel/dataset/internal/models"
	"github.com/cropmodel/dataset/internal/reportstore"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ValidateHandler runs validation passes on request
type ValidateHandler interface {
	HandleValidate(c echo.Context) error
}

// SessionHandler runs validations in the background
type SessionHandler interface {
	HandleStartSession(c echo.Context) error
	HandleSessionStatus(c echo.Context) error
}

// RunsHandler serves the stored run history
type RunsHandler interface {
	HandleListRuns(c echo.Context) error
	HandleGetRun(c echo.Context) error
	HandleGetRunDiagnostics(c echo.Context) error
	HandleGetRunMsgpack(c echo.Context) error
}

// RunStore is the subset of the report store the handlers use.
type RunStore interface {
	SaveRun(ctx context.Context, rep *models.DatasetReport) error
	ListRuns(ctx context.Context, limit int) ([]reportstore.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*models.DatasetReport, error)
	Diagnostics(ctx context.Context, runID string) ([]reportstore.Diagnostic, error)
}

var _ RunStore = (*reportstore.Store)(nil)
