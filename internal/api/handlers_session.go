// handlers_session.go - Background validation session handlers
package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/cropmodel/dataset/internal/session"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions *session.Manager
}

// NewSessionHandler creates a session handler. A nil manager answers every
// request with 503.
func NewSessionHandler(sessions *session.Manager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

// HandleStartSession starts validating a directory in the background and
// returns the pending session.
func (h *SessionHandlerImpl) HandleStartSession(c echo.Context) error {
	if h.sessions == nil {
		return NewServiceUnavailableError("background validation is disabled")
	}

	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Dir == "" {
		return NewValidationError("dir")
	}
	if info, err := os.Stat(req.Dir); err != nil {
		return NewBadRequestError("directory not accessible", err)
	} else if !info.IsDir() {
		return NewBadRequestError("not a directory: "+req.Dir, nil)
	}

	s, err := h.sessions.StartSession(req.Dir)
	if errors.Is(err, session.ErrTooManySessions) {
		return NewServiceUnavailableError(err.Error())
	}
	if err != nil {
		return NewInternalError("failed to start validation", err)
	}
	return c.JSON(http.StatusAccepted, s)
}

// HandleSessionStatus returns the current state of a session, including
// the report once it is complete.
func (h *SessionHandlerImpl) HandleSessionStatus(c echo.Context) error {
	if h.sessions == nil {
		return NewServiceUnavailableError("background validation is disabled")
	}
	id := c.Param("id")
	s, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, s)
}
