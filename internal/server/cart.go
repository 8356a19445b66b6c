package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/cart"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type lineItemView struct {
	cart.LineItem
	Metadata json.RawMessage `json:"metadata"`
}

func newLineItemView(item cart.LineItem) lineItemView {
	metadata := json.RawMessage(item.MetadataJSON)
	if !json.Valid(metadata) {
		metadata = json.RawMessage("{}")
	}
	return lineItemView{LineItem: item, Metadata: metadata}
}

type customizationView struct {
	customization.Record
	Design json.RawMessage `json:"design"`
}

func newCustomizationView(record customization.Record) customizationView {
	document := json.RawMessage(record.DesignJSON)
	if !json.Valid(document) {
		document = json.RawMessage("null")
	}
	return customizationView{Record: record, Design: document}
}

type addToCartResponse struct {
	Customization customizationView `json:"customization"`
	Item          lineItemView      `json:"item"`
	PreviewURL    string            `json:"preview_url,omitempty"`
	Renderer      string            `json:"renderer,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

type cartResponse struct {
	Items []lineItemView `json:"items"`
}

type customizationsResponse struct {
	Customizations []customizationView `json:"customizations"`
}

func (h *httpHandler) handlePreview(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	output, err := h.checkout.Preview(c.Request.Context(), editor)
	if err != nil {
		h.respondError(c, "design.preview", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Renderer", output.Renderer)
	c.Data(http.StatusOK, output.ContentType, output.Data)
}

func (h *httpHandler) handleAddToCart(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	userID := c.GetString(userIDContextKey)
	result, err := h.checkout.Commit(c.Request.Context(), editor, userID)
	if err != nil {
		h.respondError(c, "design.add_to_cart", err)
		return
	}
	if len(result.Warnings) > 0 {
		h.logger.Warn("design added to cart with warnings",
			zap.String("editor_id", editor.ID()),
			zap.String("user_id", userID),
			zap.Strings("warnings", result.Warnings))
	}
	h.publish(editor.ID(), RealtimeEventAddedToCart, editor.View().Version)
	c.JSON(http.StatusCreated, addToCartResponse{
		Customization: newCustomizationView(result.Record),
		Item:          newLineItemView(result.Item),
		PreviewURL:    result.PreviewURL,
		Renderer:      result.Renderer,
		Warnings:      result.Warnings,
	})
}

func (h *httpHandler) handleListCart(c *gin.Context) {
	items, err := h.cart.ListItems(c.Request.Context(), c.GetString(tenantIDContextKey), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "cart.list", err)
		return
	}
	response := cartResponse{Items: make([]lineItemView, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, newLineItemView(item))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetCustomization(c *gin.Context) {
	record, err := h.customizations.Get(
		c.Request.Context(),
		c.GetString(tenantIDContextKey),
		c.GetString(userIDContextKey),
		c.Param("id"),
	)
	if err != nil {
		h.respondError(c, "customization.get", err)
		return
	}
	c.JSON(http.StatusOK, newCustomizationView(record))
}

// handleListCustomizations returns the signed-in customer's most recent committed designs.
func (h *httpHandler) handleListCustomizations(c *gin.Context) {
	records, err := h.customizations.ListForUser(c.Request.Context(), c.GetString(tenantIDContextKey), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "customization.list", err)
		return
	}
	response := customizationsResponse{Customizations: make([]customizationView, 0, len(records))}
	for _, record := range records {
		response.Customizations = append(response.Customizations, newCustomizationView(record))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handlePreviewObject(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	object, err := h.previews.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.respondError(c, "preview.get", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, object.ContentType, object.Data)
}
