package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/checkout"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{catalog.ErrCustomizationUnavailable, http.StatusNotFound, "customization_unavailable"},
	{design.ErrEditorNotFound, http.StatusNotFound, "editor_not_found"},
	{design.ErrElementNotFound, http.StatusNotFound, "element_not_found"},
	{customization.ErrRecordNotFound, http.StatusNotFound, "not_found"},
	{design.ErrUnreadableImage, http.StatusUnprocessableEntity, "unreadable_image"},
	{design.ErrInvalidBaseProduct, http.StatusBadRequest, "invalid_base_product"},
	{catalog.ErrUnknownProductType, http.StatusBadRequest, "invalid_base_product"},
	{catalog.ErrUnknownProductSize, http.StatusBadRequest, "invalid_base_product"},
	{catalog.ErrUnknownProductColor, http.StatusBadRequest, "invalid_base_product"},
	{design.ErrEmptyText, http.StatusBadRequest, "empty_text"},
	{design.ErrUnknownFont, http.StatusBadRequest, "unknown_font"},
	{design.ErrUnknownColor, http.StatusBadRequest, "unknown_color"},
	{design.ErrInvalidTextStyle, http.StatusBadRequest, "invalid_text_style"},
	{design.ErrInvalidOpacity, http.StatusBadRequest, "invalid_opacity"},
	{design.ErrUnknownLayerKind, http.StatusBadRequest, "unknown_layer_kind"},
	{design.ErrInvalidHandle, http.StatusBadRequest, "invalid_handle"},
	{design.ErrInvalidViewport, http.StatusBadRequest, "invalid_viewport"},
	{design.ErrUnknownPointerEvent, http.StatusBadRequest, "unknown_pointer_event"},
	{design.ErrGestureInProgress, http.StatusConflict, "gesture_in_progress"},
	{design.ErrNoPendingText, http.StatusConflict, "no_pending_text"},
	{checkout.ErrCommitInProgress, http.StatusConflict, "add_to_cart_in_progress"},
	{checkout.ErrInvalidDesign, http.StatusBadRequest, "invalid_design"},
	{context.Canceled, http.StatusRequestTimeout, "cancelled"},
	{context.DeadlineExceeded, http.StatusRequestTimeout, "cancelled"},
}

func classifyError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	status, code := classifyError(err)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("code", code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	body := gin.H{"error": code}
	if errors.Is(err, catalog.ErrCustomizationUnavailable) {
		body["redirect_to"] = h.unavailableURL
	}
	c.AbortWithStatusJSON(status, body)
}
