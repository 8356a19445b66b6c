package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRequiresTenantAndRedirectsWhenUnavailable(t *testing.T) {
	f := newFixture(t)

	anonymous := &client{fixture: f}
	recorder := anonymous.do(t, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "missing_tenant", decodeBody(t, recorder)["error"])

	disabled := &client{fixture: f, tenant: "globex"}
	recorder = disabled.do(t, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "customization_unavailable", body["error"])
	assert.Equal(t, "/", body["redirect_to"])

	recorder = f.newClient().do(t, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var entry catalog.Catalog
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &entry))
	assert.Equal(t, "EGP", entry.Currency)
	assert.Len(t, entry.Products, 2)
}

func TestCreateDesignIssuesEditorCookieAndScopesEditors(t *testing.T) {
	f := newFixture(t)
	owner := f.newClient()

	view := owner.createDesign(t)
	require.Len(t, owner.cookies, 1)
	assert.True(t, owner.cookies[0].HttpOnly)
	assert.True(t, view.Valid)
	assert.Equal(t, catalog.MoneyFromMajor(150), view.Pricing.TotalPrice)

	recorder := owner.do(t, http.MethodGet, "/designs/"+view.ID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	stranger := f.newClient()
	recorder = stranger.do(t, http.MethodGet, "/designs/"+view.ID, nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "editor_not_found", decodeBody(t, recorder)["error"])

	otherTenant := &client{fixture: f, tenant: "globex", cookies: owner.cookies}
	recorder = otherTenant.do(t, http.MethodGet, "/designs/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateDesignRejectsIncompleteBaseProduct(t *testing.T) {
	f := newFixture(t)
	recorder := f.newClient().do(t, http.MethodPost, "/designs", map[string]string{"type": "T-Shirt", "size": "M"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_base_product", decodeBody(t, recorder)["error"])

	recorder = f.newClient().do(t, http.MethodPost, "/designs", map[string]string{"type": "Hoodie", "size": "M", "color": "Black"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_base_product", decodeBody(t, recorder)["error"])
}

func TestDesignPricingFollowsLayers(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	base := "/designs/" + view.ID

	recorder := browser.do(t, http.MethodPost, base+"/texts", map[string]any{
		"text":        "Hello",
		"position":    map[string]float64{"x": 40, "y": 40},
		"font_family": "Arial",
		"color":       "#000000",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var added struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEditor(t, recorder).Result, &added))
	require.NotEmpty(t, added.ID)

	for index := 0; index < 2; index++ {
		recorder = browser.upload(t, base+"/images", pngBytes(t, 400, 200), map[string]string{"x": "100", "y": "100"})
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	envelope := decodeEditor(t, recorder)
	assert.Equal(t, catalog.MoneyFromMajor(200), envelope.Editor.Pricing.TotalPrice)
	assert.Equal(t, 1, envelope.Editor.Pricing.TextCount)
	assert.Equal(t, 2, envelope.Editor.Pricing.ImageCount)
	require.Len(t, envelope.Editor.Design.Images, 2)
	assert.Equal(t, design.Size{Width: 200, Height: 100}, envelope.Editor.Design.Images[0].Size)

	recorder = browser.do(t, http.MethodDelete, base+"/texts/"+added.ID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, catalog.MoneyFromMajor(180), decodeEditor(t, recorder).Editor.Pricing.TotalPrice)
}

func TestCorruptUploadLeavesDesignUnchanged(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)

	recorder := browser.upload(t, "/designs/"+view.ID+"/images", []byte("definitely not an image"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "unreadable_image", decodeBody(t, recorder)["error"])

	recorder = browser.do(t, http.MethodGet, "/designs/"+view.ID, nil)
	current := decodeEditor(t, recorder).Editor
	assert.Empty(t, current.Design.Images)
	assert.Equal(t, view.Version, current.Version)
}

func TestImageUploadsAreRateLimitedPerBrowser(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	path := "/designs/" + view.ID + "/images"

	for index := 0; index < 3; index++ {
		recorder := browser.upload(t, path, pngBytes(t, 10, 10), nil)
		require.Equal(t, http.StatusCreated, recorder.Code)
	}
	recorder := browser.upload(t, path, pngBytes(t, 10, 10), nil)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "upload_rate_limited", decodeBody(t, recorder)["error"])
}

func TestPointerDragAtHalfScale(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	base := "/designs/" + view.ID

	recorder := browser.do(t, http.MethodPost, base+"/viewport", map[string]float64{"width": 300, "height": 250})
	require.Equal(t, http.StatusOK, recorder.Code)
	recorder = browser.do(t, http.MethodPost, base+"/texts", map[string]any{
		"text":        "Drag",
		"position":    map[string]float64{"x": 100, "y": 100},
		"font_family": "Arial",
		"color":       "#000000",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	for _, event := range []map[string]any{
		{"type": "down", "x": 55, "y": 55},
		{"type": "move", "x": 105, "y": 55},
	} {
		recorder = browser.do(t, http.MethodPost, base+"/pointer", event)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	}
	dragging := decodeEditor(t, recorder).Editor
	require.NotNil(t, dragging.Interaction.Dragging)

	recorder = browser.do(t, http.MethodPost, base+"/pointer", map[string]any{"type": "up", "x": 105, "y": 55})
	require.Equal(t, http.StatusOK, recorder.Code)
	released := decodeEditor(t, recorder).Editor
	assert.Nil(t, released.Interaction.Dragging)
	require.Len(t, released.Design.Texts, 1)
	assert.InDelta(t, 200.0, released.Design.Texts[0].Position.X, 1e-9)
	assert.InDelta(t, 100.0, released.Design.Texts[0].Position.Y, 1e-9)

	recorder = browser.do(t, http.MethodPost, base+"/pointer", map[string]any{"type": "wiggle"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "unknown_pointer_event", decodeBody(t, recorder)["error"])
}

func TestClickToAddCapturesClickPosition(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	base := "/designs/" + view.ID

	require.Equal(t, http.StatusOK, browser.do(t, http.MethodPost, base+"/viewport", map[string]float64{"width": 300, "height": 250}).Code)
	recorder := browser.do(t, http.MethodPost, base+"/click-to-add", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, decodeEditor(t, recorder).Editor.ClickToAdd)

	recorder = browser.do(t, http.MethodPost, base+"/pointer", map[string]any{"type": "click", "x": 100, "y": 60})
	require.Equal(t, http.StatusOK, recorder.Code)
	pending := decodeEditor(t, recorder).Editor.Pending
	require.NotNil(t, pending)
	assert.Equal(t, design.Point{X: 200, Y: 120}, pending.Position)

	recorder = browser.do(t, http.MethodPost, base+"/pending-text", map[string]string{"text": "Here", "font_family": "Arial", "color": "#000000"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	texts := decodeEditor(t, recorder).Editor.Design.Texts
	require.Len(t, texts, 1)
	assert.Equal(t, design.Point{X: 200, Y: 120}, texts[0].Position)

	recorder = browser.do(t, http.MethodPost, base+"/pending-text", map[string]string{"text": "Again", "font_family": "Arial", "color": "#000000"})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestViewportRejectsOversizedCanvas(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	base := "/designs/" + view.ID

	recorder := browser.do(t, http.MethodPost, base+"/viewport", map[string]float64{"width": 100000, "height": 100000})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_viewport", decodeBody(t, recorder)["error"])

	recorder = browser.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, design.Size{Width: design.DefaultCanvasWidth, Height: design.DefaultCanvasHeight}, decodeEditor(t, recorder).Editor.Rendered)

	recorder = browser.do(t, http.MethodPost, "/designs", map[string]any{
		"type":     "T-Shirt",
		"size":     "M",
		"color":    "Black",
		"rendered": map[string]float64{"width": 100000, "height": 250},
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_viewport", decodeBody(t, recorder)["error"])
	assert.Equal(t, 1, f.editors.Len())
}

func TestKeyboardShortcutAndReset(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)
	base := "/designs/" + view.ID

	recorder := browser.do(t, http.MethodPost, base+"/keys", map[string]any{"key": "t", "ctrl": true})
	require.Equal(t, http.StatusOK, recorder.Code)
	envelope := decodeEditor(t, recorder)
	assert.Len(t, envelope.Editor.Design.Texts, 1)
	assert.Contains(t, string(envelope.Result), `"handled":true`)

	recorder = browser.do(t, http.MethodPost, base+"/reset", map[string]bool{"confirm": false})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "confirmation_required", decodeBody(t, recorder)["error"])

	require.Equal(t, http.StatusOK, browser.do(t, http.MethodPost, base+"/click-to-add", nil).Code)
	recorder = browser.do(t, http.MethodPost, base+"/pointer", map[string]any{"type": "click", "x": 60, "y": 450})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, decodeEditor(t, recorder).Editor.Pending)

	recorder = browser.do(t, http.MethodPost, base+"/reset", map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, recorder.Code)
	reset := decodeEditor(t, recorder).Editor
	assert.Empty(t, reset.Design.Texts)
	assert.False(t, reset.Valid)
	assert.Nil(t, reset.Pending)
	assert.False(t, reset.ClickToAdd)

	recorder = browser.do(t, http.MethodPost, base+"/pending-text", map[string]string{"text": "Late", "font_family": "Arial", "color": "#000000"})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestDeleteDesignDiscardsEditor(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)

	recorder := browser.do(t, http.MethodDelete, "/designs/"+view.ID, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Zero(t, f.editors.Len())

	recorder = browser.do(t, http.MethodDelete, "/designs/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestPreviewReturnsJPEG(t *testing.T) {
	f := newFixture(t)
	browser := f.newClient()
	view := browser.createDesign(t)

	recorder := browser.do(t, http.MethodGet, "/designs/"+view.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "image/jpeg", recorder.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(recorder.Body.String(), "\xff\xd8"))
	assert.Zero(t, f.previews.Len(), "previewing must not store anything")
}

func TestCORSPreflightAllowsTenantHeader(t *testing.T) {
	f := newFixture(t)
	request, err := http.NewRequest(http.MethodOptions, "/designs", http.NoBody)
	require.NoError(t, err)
	request.Header.Set("Origin", testOrigin)
	request.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	request.Header.Set("Access-Control-Request-Headers", tenantHeader)

	recorder := (&client{fixture: f}).send(request)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Contains(t, strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(tenantHeader))
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, testOrigin, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSIgnoresUnlistedOrigin(t *testing.T) {
	f := newFixture(t)
	request, err := http.NewRequest(http.MethodGet, "/catalog", http.NoBody)
	require.NoError(t, err)
	request.Header.Set("Origin", "https://evil.example")
	request.Header.Set(tenantHeader, testTenantID)

	recorder := (&client{fixture: f}).send(request)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWildcardNeverAllowsCredentials(t *testing.T) {
	router := gin.New()
	router.Use(corsMiddleware([]string{"*"}))
	router.GET("/catalog", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := httptest.NewRequest(http.MethodGet, "/catalog", http.NoBody)
	request.Header.Set("Origin", "https://evil.example")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Credentials"))
}
