package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/cart"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/checkout"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/customization"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/database"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/raster"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testTenantID      = "acme"
	testSigningSecret = "server-secret"
	testIssuer        = "storefront-auth"
	testSessionCookie = "storefront_session"
	testOrigin        = "https://shop.example.com"
)

type fixture struct {
	router   http.Handler
	editors  *design.Registry
	realtime *RealtimeDispatcher
	previews *storage.MemoryStore
	issuer   *auth.TokenIssuer
}

type client struct {
	fixture *fixture
	tenant  string
	cookies []*http.Cookie
}

type editorEnvelope struct {
	Editor design.View     `json:"editor"`
	Result json.RawMessage `json:"result"`
}

func testCatalogs() []catalog.Catalog {
	return []catalog.Catalog{
		{
			TenantID:   testTenantID,
			Enabled:    true,
			Currency:   "EGP",
			TextPrice:  catalog.MoneyFromMajor(20),
			ImagePrice: catalog.MoneyFromMajor(15),
			Products: []catalog.ProductType{
				{
					Name:      "T-Shirt",
					BasePrice: catalog.MoneyFromMajor(150),
					Sizes:     []string{"S", "M", "L"},
					Colors:    []catalog.ColorOption{{Name: "Black", Hex: "#111111"}},
				},
				{
					Name:      "Mug",
					BasePrice: catalog.MoneyFromMajor(90),
					Sizes:     []string{"Standard"},
					Colors:    []catalog.ColorOption{{Name: "White", Hex: "#ffffff"}},
				},
			},
		},
		{TenantID: "globex", Enabled: false},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "server.db"), logger)
	require.NoError(t, err)
	ids := design.NewUUIDProvider()

	records, err := customization.NewService(customization.ServiceConfig{Database: db, IDProvider: ids})
	require.NoError(t, err)
	cartService, err := cart.NewService(cart.ServiceConfig{Database: db, IDProvider: ids})
	require.NoError(t, err)
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	require.NoError(t, err)

	previews := storage.NewMemoryStore("")
	checkoutService, err := checkout.NewService(checkout.ServiceConfig{
		Rasterizer: raster.NewRasterizer(raster.Config{}),
		Uploader:   previews,
		Records:    records,
		Cart:       cartService,
	})
	require.NoError(t, err)

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testSessionCookie,
	})
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)

	editors := design.NewRegistry(design.RegistryConfig{IDProvider: ids})
	realtime := NewRealtimeDispatcher()
	router, err := NewHTTPHandler(Dependencies{
		Catalogs:       catalog.NewProvider(testCatalogs()),
		Editors:        editors,
		Checkout:       checkoutService,
		Cart:           cartService,
		Customizations: records,
		Sessions:       validator,
		Users:          userService,
		Previews:       previews,
		Realtime:       realtime,
		Uploads:        NewUploadLimiter(1, 3),
		AllowedOrigins: []string{testOrigin},
		Logger:         logger,
	})
	require.NoError(t, err)

	return &fixture{
		router:   router,
		editors:  editors,
		realtime: realtime,
		previews: previews,
		issuer:   issuer,
	}
}

func (f *fixture) newClient() *client {
	return &client{fixture: f, tenant: testTenantID}
}

func (f *fixture) token(t *testing.T, claims auth.SessionClaims) string {
	t.Helper()
	token, _, err := f.issuer.Issue(claims)
	require.NoError(t, err)
	return token
}

func withBearer(token string) func(*http.Request) {
	return func(request *http.Request) {
		request.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *client) send(request *http.Request, mutators ...func(*http.Request)) *httptest.ResponseRecorder {
	if c.tenant != "" {
		request.Header.Set(tenantHeader, c.tenant)
	}
	for _, cookie := range c.cookies {
		request.AddCookie(cookie)
	}
	for _, mutate := range mutators {
		mutate(request)
	}
	recorder := httptest.NewRecorder()
	c.fixture.router.ServeHTTP(recorder, request)
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == defaultEditorCookieName {
			c.cookies = []*http.Cookie{cookie}
		}
	}
	return recorder
}

func (c *client) do(t *testing.T, method, path string, body any, mutators ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	return c.send(request, mutators...)
}

func (c *client) upload(t *testing.T, path string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "upload.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(request)
}

func (c *client) createDesign(t *testing.T) design.View {
	t.Helper()
	recorder := c.do(t, http.MethodPost, "/designs", map[string]string{"type": "T-Shirt", "size": "M", "color": "Black"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decodeEditor(t, recorder).Editor
}

func (c *client) ownerKey() string {
	if len(c.cookies) == 0 {
		return ""
	}
	return c.tenant + "/" + c.cookies[0].Value
}

func decodeEditor(t *testing.T, recorder *httptest.ResponseRecorder) editorEnvelope {
	t.Helper()
	var envelope editorEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope), recorder.Body.String())
	return envelope
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 120, B: 200, A: 255})
		}
	}
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))
	return buffer.Bytes()
}
