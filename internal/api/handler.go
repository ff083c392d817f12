package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facility-form-backend/config"
	"facility-form-backend/internal/form"
	"facility-form-backend/internal/ledger"
	"facility-form-backend/internal/logger"
	"facility-form-backend/internal/session"
	"facility-form-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	sessions  *session.Registry
	directory form.Directory
	submitter form.Submitter
	webpush   *webpush.Options
	forms     config.FormsConfig
	log       *zap.Logger
}

// Deps are the collaborators a Handler is built from.
type Deps struct {
	Store     store.Store
	Sessions  *session.Registry
	Directory form.Directory
	Submitter form.Submitter
	WebPush   *webpush.Options
	Forms     config.FormsConfig
	Log       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:     d.Store,
		sessions:  d.Sessions,
		directory: d.Directory,
		submitter: d.Submitter,
		webpush:   d.WebPush,
		forms:     d.Forms,
		log:       logger.OrNop(d.Log),
	}
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verrs form.ValidationErrors
	var submitErr *ledger.SubmitError
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "fields": []form.FieldError(verrs)})
	case errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrReporterIndex),
		errors.Is(err, form.ErrUnknownProperty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, form.ErrSubmitInProgress), errors.Is(err, form.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &submitErr), errors.Is(err, form.ErrSubmit):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
