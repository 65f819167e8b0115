package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

type errorResponse struct {
	Error           string            `json:"error"`
	Details         map[string]string `json:"details,omitempty"`
	ItemID          *uuid.UUID        `json:"itemId,omitempty"`
	Requested       *int              `json:"requested,omitempty"`
	Available       *int              `json:"available,omitempty"`
	CurrentStatus   string            `json:"currentStatus,omitempty"`
	RequestedStatus string            `json:"requestedStatus,omitempty"`
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateEntry),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err to a status and a body; faults are logged, their details hidden.
func respondError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Stack().Err(err).Str("path", c.FullPath()).Msg("request failed")
		msg := "internal error"
		if status == http.StatusServiceUnavailable {
			msg = "storage unavailable"
		}
		c.JSON(status, errorResponse{Error: msg})
		return
	}

	body := errorResponse{Error: err.Error()}
	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		body.ItemID = &stock.ItemID
		body.Requested = &stock.Requested
		body.Available = &stock.Available
	}
	var missing *domain.ItemNotFoundError
	if errors.As(err, &missing) {
		body.ItemID = &missing.ItemID
	}
	var transition *domain.InvalidTransitionError
	if errors.As(err, &transition) {
		body.CurrentStatus = string(transition.From)
		body.RequestedStatus = string(transition.To)
	}
	c.JSON(status, body)
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: formatValidationErrors(verrs)})
		return
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
}

func formatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out[fe.Field()] = fmt.Sprintf("failed on '%s=%s'", fe.Tag(), fe.Param())
			continue
		}
		out[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
	}
	return out
}
