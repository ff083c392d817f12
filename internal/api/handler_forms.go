package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facility-form-backend/internal/form"
)

type formResponse struct {
	ID   string    `json:"id"`
	Form form.View `json:"form"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type propertiesRequest struct {
	Properties []string `json:"properties"`
}

// OpenForm starts a new facility form session.
func (h *Handler) OpenForm(c *gin.Context) {
	id, ctrl := h.sessions.Open(c.Request.Context())
	c.JSON(http.StatusCreated, formResponse{ID: id, Form: ctrl.View()})
}

// GetForm renders the current state of a form.
func (h *Handler) GetForm(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formResponse{ID: c.Param("id"), Form: ctrl.View()})
}

// CloseForm discards a form session.
func (h *Handler) CloseForm(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetField binds a facility input.
func (h *Handler) SetField(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondView(c, func() (form.View, error) { return ctrl.SetField(c.Param("field"), req.Value) })
}

// ResolveReporter handles a keystroke in a reporter's name or key input.
func (h *Handler) ResolveReporter(c *gin.Context) {
	ctrl, i, ok := h.reporterRow(c)
	if !ok {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondView(c, func() (form.View, error) { return ctrl.ResolveReporter(i, req.Value) })
}

// BlurReporter handles a reporter input losing focus.
func (h *Handler) BlurReporter(c *gin.Context) {
	ctrl, i, ok := h.reporterRow(c)
	if !ok {
		return
	}
	h.respondView(c, func() (form.View, error) { return ctrl.BlurReporter(i) })
}

// SetReporterProperties replaces a reporter's selected categories.
func (h *Handler) SetReporterProperties(c *gin.Context) {
	ctrl, i, ok := h.reporterRow(c)
	if !ok {
		return
	}
	var req propertiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondView(c, func() (form.View, error) { return ctrl.SetReporterProperties(i, req.Properties) })
}

// ValidateForm lists what a strict submission would reject.
func (h *Handler) ValidateForm(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Validate(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": []form.FieldError{}})
}

// SubmitForm submits the facility and its reporter proposals to the ledger.
func (h *Handler) SubmitForm(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.forms.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.forms.SubmitTimeout)
		defer cancel()
	}

	location, err := ctrl.Submit(ctx, h.submitter, form.SubmitOptions{Strict: h.forms.StrictValidation})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}

func (h *Handler) controller(c *gin.Context) (*form.Controller, bool) {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) reporterRow(c *gin.Context) (*form.Controller, int, bool) {
	ctrl, ok := h.controller(c)
	if !ok {
		return nil, 0, false
	}
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.respondError(c, fmt.Errorf("%w: %q", form.ErrReporterIndex, c.Param("index")))
		return nil, 0, false
	}
	return ctrl, i, true
}

func (h *Handler) respondView(c *gin.Context, apply func() (form.View, error)) {
	v, err := apply()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, formResponse{ID: c.Param("id"), Form: v})
}
