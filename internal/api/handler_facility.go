package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facility-form-backend/internal/model"
)

type facilityResponse struct {
	RecordID    string                 `json:"record_id"`
	Status      model.SubmissionStatus `json:"status"`
	Submissions []model.Submission     `json:"submissions"`
}

// GetFacility reports what the service knows about a submitted facility.
func (h *Handler) GetFacility(c *gin.Context) {
	recordID := c.Param("id")
	subs, err := h.store.SubmissionsForRecord(c.Request.Context(), recordID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facilityResponse{
		RecordID:    recordID,
		Status:      subs[0].Status,
		Submissions: subs,
	})
}
