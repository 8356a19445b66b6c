package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadRequestBytes = design.MaxUploadBytes + 1<<20

type editorResponse struct {
	Editor design.View `json:"editor"`
	Result any         `json:"result,omitempty"`
}

type elementRefPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (p *elementRefPayload) toRef() (*design.ElementRef, error) {
	if p == nil {
		return nil, nil
	}
	kind, err := design.ParseLayerKind(p.Kind)
	if err != nil {
		return nil, err
	}
	return &design.ElementRef{Kind: kind, ID: p.ID}, nil
}

type baseProductPayload struct {
	Type  string `json:"type"`
	Size  string `json:"size"`
	Color string `json:"color"`
}

type createDesignRequest struct {
	baseProductPayload
	Rendered *design.Size `json:"rendered"`
}

type addTextRequest struct {
	Text       string        `json:"text"`
	Position   *design.Point `json:"position"`
	FontFamily string        `json:"font_family"`
	Color      string        `json:"color"`
}

type pointerRequest struct {
	Type   string             `json:"type"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
	Target *elementRefPayload `json:"target"`
	Handle string             `json:"handle"`
}

type selectRequest struct {
	Target *elementRefPayload `json:"target"`
}

type clickToAddRequest struct {
	Cancel bool `json:"cancel"`
}

type keyRequest struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl"`
	Meta bool   `json:"meta"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func defaultPosition() design.Point {
	return design.Point{X: design.CanvasPadding, Y: design.CanvasPadding}
}

func (h *httpHandler) editor(c *gin.Context) (*design.Editor, bool) {
	editor, err := h.editors.Get(c.GetString(ownerKeyContextKey), c.Param("id"))
	if err != nil {
		h.respondError(c, "design.lookup", err)
		return nil, false
	}
	return editor, true
}

// mutate runs fn with exclusive access to the editor, publishes a change event when the
// design version moved, and answers with the resulting view.
func (h *httpHandler) mutate(c *gin.Context, operation string, status int, fn func(store *design.Store, controller *design.Controller) (any, error)) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	var (
		result any
		before int64
	)
	err := editor.Do(func(store *design.Store, controller *design.Controller) error {
		before = store.Version()
		var err error
		result, err = fn(store, controller)
		return err
	})
	if err != nil {
		h.respondError(c, operation, err)
		return
	}
	view := editor.View()
	if view.Version != before {
		h.publish(view.ID, RealtimeEventDesignChanged, view.Version)
	}
	c.JSON(status, editorResponse{Editor: view, Result: result})
}

func (h *httpHandler) publish(editorID, eventType string, version int64) {
	h.realtime.Publish(RealtimeMessage{EditorID: editorID, EventType: eventType, Version: version})
}

func (h *httpHandler) handleCreateDesign(c *gin.Context) {
	var request createDesignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	tenantID := c.GetString(tenantIDContextKey)
	entry, err := h.catalogs.Lookup(tenantID)
	if err != nil {
		h.respondError(c, "design.create", err)
		return
	}
	editor, err := h.editors.Create(c.GetString(ownerKeyContextKey), entry, design.BaseProduct{
		Type:  request.Type,
		Size:  request.Size,
		Color: request.Color,
	})
	if err != nil {
		h.respondError(c, "design.create", err)
		return
	}
	if request.Rendered != nil {
		err := editor.Do(func(store *design.Store, _ *design.Controller) error {
			_, err := store.Resize(request.Rendered.Width, request.Rendered.Height)
			return err
		})
		if err != nil {
			_ = h.editors.Remove(c.GetString(ownerKeyContextKey), editor.ID())
			h.respondError(c, "design.create", err)
			return
		}
	}
	h.logger.Info("editor created",
		zap.String("editor_id", editor.ID()),
		zap.String("tenant_id", tenantID))
	c.JSON(http.StatusCreated, editorResponse{Editor: editor.View()})
}

func (h *httpHandler) handleGetDesign(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, editorResponse{Editor: editor.View()})
}

func (h *httpHandler) handleDeleteDesign(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	version := editor.View().Version
	if err := h.editors.Remove(c.GetString(ownerKeyContextKey), editor.ID()); err != nil {
		h.respondError(c, "design.delete", err)
		return
	}
	h.realtime.Close(editor.ID(), version)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpdateBase(c *gin.Context) {
	var request baseProductPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.mutate(c, "design.update_base", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		return nil, store.UpdateBaseProduct(request.Type, request.Size, request.Color)
	})
}

func (h *httpHandler) handleViewport(c *gin.Context) {
	var request design.Size
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.mutate(c, "design.viewport", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		scale, err := store.Resize(request.Width, request.Height)
		if err != nil {
			return nil, err
		}
		return scale, nil
	})
}

func (h *httpHandler) handleAddText(c *gin.Context) {
	var request addTextRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	position := defaultPosition()
	if request.Position != nil {
		position = *request.Position
	}
	h.mutate(c, "design.add_text", http.StatusCreated, func(store *design.Store, _ *design.Controller) (any, error) {
		id, err := store.AddText(request.Text, position, request.FontFamily, request.Color)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": id}, nil
	})
}

func (h *httpHandler) handleUpdateText(c *gin.Context) {
	var patch design.TextPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	layerID := c.Param("layer")
	h.mutate(c, "design.update_text", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		return nil, store.UpdateText(layerID, patch)
	})
}

func (h *httpHandler) handleRemoveText(c *gin.Context) {
	layerID := c.Param("layer")
	h.mutate(c, "design.remove_text", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		store.RemoveText(layerID)
		return nil, nil
	})
}

func (h *httpHandler) handleAddImage(c *gin.Context) {
	editor, ok := h.editor(c)
	if !ok {
		return
	}
	if h.uploads != nil && !h.uploads.Allow(c.GetString(ownerKeyContextKey)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "upload_rate_limited"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadRequestBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	position := defaultPosition()
	if raw := c.PostForm("x"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			position.X = value
		}
	}
	if raw := c.PostForm("y"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			position.Y = value
		}
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, "design.add_image", err)
		return
	}
	defer file.Close()

	// Decoding happens outside the editor lock; a failed decode leaves the design untouched.
	asset, err := design.DecodeAsset(c.Request.Context(), file)
	if err != nil {
		h.logger.Info("image upload rejected",
			zap.String("editor_id", editor.ID()),
			zap.String("filename", header.Filename),
			zap.Error(err))
		h.respondError(c, "design.add_image", err)
		return
	}
	h.mutate(c, "design.add_image", http.StatusCreated, func(store *design.Store, _ *design.Controller) (any, error) {
		id, err := store.AddDecodedImage(asset, position)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": id}, nil
	})
}

func (h *httpHandler) handleUpdateImage(c *gin.Context) {
	var patch design.ImagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	layerID := c.Param("layer")
	h.mutate(c, "design.update_image", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		return nil, store.UpdateImage(layerID, patch)
	})
}

func (h *httpHandler) handleRemoveImage(c *gin.Context) {
	layerID := c.Param("layer")
	h.mutate(c, "design.remove_image", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		store.RemoveImage(layerID)
		return nil, nil
	})
}

func (h *httpHandler) handleSelect(c *gin.Context) {
	var request selectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	ref, err := request.Target.toRef()
	if err != nil {
		h.respondError(c, "design.select", err)
		return
	}
	h.mutate(c, "design.select", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		return nil, store.SelectElement(ref)
	})
}

func (h *httpHandler) handleBringToFront(c *gin.Context) {
	var request elementRefPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	ref, err := request.toRef()
	if err != nil {
		h.respondError(c, "design.bring_to_front", err)
		return
	}
	h.mutate(c, "design.bring_to_front", http.StatusOK, func(store *design.Store, _ *design.Controller) (any, error) {
		return nil, store.BringToFront(*ref)
	})
}

func (h *httpHandler) handlePointer(c *gin.Context) {
	var request pointerRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	target, err := request.Target.toRef()
	if err != nil {
		h.respondError(c, "design.pointer", err)
		return
	}
	var handle design.Handle
	if request.Handle != "" {
		if handle, err = design.ParseHandle(request.Handle); err != nil {
			h.respondError(c, "design.pointer", err)
			return
		}
	}
	event := design.PointerEvent{
		Type:   design.PointerEventType(request.Type),
		Point:  design.Point{X: request.X, Y: request.Y},
		Target: target,
		Handle: handle,
	}
	h.mutate(c, "design.pointer", http.StatusOK, func(_ *design.Store, controller *design.Controller) (any, error) {
		return controller.HandlePointer(event)
	})
}

func (h *httpHandler) handleClickToAdd(c *gin.Context) {
	var request clickToAddRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	h.mutate(c, "design.click_to_add", http.StatusOK, func(_ *design.Store, controller *design.Controller) (any, error) {
		if request.Cancel {
			controller.CancelClickToAdd()
			return gin.H{"click_to_add": false}, nil
		}
		return gin.H{"click_to_add": controller.ToggleClickToAdd()}, nil
	})
}

func (h *httpHandler) handlePendingText(c *gin.Context) {
	var request addTextRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.mutate(c, "design.pending_text", http.StatusCreated, func(_ *design.Store, controller *design.Controller) (any, error) {
		id, err := controller.ConfirmPendingText(request.Text, request.FontFamily, request.Color)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": id}, nil
	})
}

func (h *httpHandler) handleKey(c *gin.Context) {
	var request keyRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.mutate(c, "design.key", http.StatusOK, func(_ *design.Store, controller *design.Controller) (any, error) {
		return controller.HandleKey(design.KeyEvent{Key: request.Key, Ctrl: request.Ctrl, Meta: request.Meta})
	})
}

func (h *httpHandler) handleReset(c *gin.Context) {
	var request resetRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if !request.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation_required"})
		return
	}
	h.mutate(c, "design.reset", http.StatusOK, func(_ *design.Store, controller *design.Controller) (any, error) {
		controller.Reset()
		return nil, nil
	})
}
