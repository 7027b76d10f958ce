package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// TestMain refuses to run outside GO_ENV=test
func TestMain(m *testing.M) {
	if env := os.Getenv("GO_ENV"); env != "test" {
		fmt.Fprintf(os.Stderr, "SAFETY CHECK FAILED: controller tests must run with GO_ENV=test (current: %q)\n", env)
		os.Exit(1)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// testEnv is a fully wired API on an in-memory database with mocked
// auth, storage and messaging
type testEnv struct {
	cfg    *config.Config
	db     *gorm.DB
	router *gin.Engine
	auth   *services.MockAuthProvider
	images *services.MockImageService
	events *services.MockEventPublisher
	logs   *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.UploadDir = t.TempDir()
	config.SetConfig(cfg)

	db := testutil.NewTestDB(t)
	config.SetDB(db)

	env := &testEnv{
		cfg:    cfg,
		db:     db,
		auth:   services.NewMockAuthProvider(),
		images: services.NewMockImageService(),
		events: services.NewMockEventPublisher(),
	}
	// Sessions from the mock provider are real JWTs so the auth middleware accepts them
	env.auth.IssueToken = func(user services.AuthUser) (string, error) {
		return testutil.MintSessionToken(t, cfg, user.ID, user.Email, time.Hour), nil
	}

	notifier := services.NewCartNotifier()
	orders := services.NewOrderService(db, env.images, env.events, notifier, nil)
	orders.SetRetryDelays(nil)

	services.SetAuthProvider(env.auth)
	env.images.SetAsMockForTesting()
	services.SetCartService(services.NewCartService(db, services.NewDBCartStore(db), services.NewMemoryCartStore(), notifier, nil))
	services.SetOrderService(orders)
	services.SetCustomerService(services.NewCustomerService(db))
	services.SetProductService(services.NewProductService(db))
	services.SetAdminService(services.NewAdminService(db))

	core, logs := observer.New(zapcore.DebugLevel)
	env.logs = logs

	env.router = gin.New()
	noLimit := func(c *gin.Context) { c.Next() }
	RegisterRoutes(env.router.Group("/api/v1"), cfg, services.GetAdminService(), noLimit, zap.New(core))
	return env
}

type requestOption func(*http.Request)

func asUser(t *testing.T, cfg *config.Config, userID, email string) requestOption {
	return func(req *http.Request) {
		testutil.AuthorizeRequest(t, req, cfg, userID, email)
	}
}

func withCookies(cookies ...*http.Cookie) requestOption {
	return func(req *http.Request) {
		for _, c := range cookies {
			req.AddCookie(c)
		}
	}
}

func withHeader(key, value string) requestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

func (e *testEnv) serve(req *http.Request, opts ...requestOption) *httptest.ResponseRecorder {
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// do sends body as JSON; a nil body sends no body at all
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, opts...)
}

// upload sends a multipart form with one file
func (e *testEnv) upload(t *testing.T, path string, fields map[string]string, fileField, filename string, content []byte, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := testutil.MultipartBody(t, fields, fileField, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return e.serve(req, opts...)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response should be valid JSON: %s", w.Body.String())
	return response
}

// dataObject returns the data member of a successful response
func dataObject(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, true, response["success"], "unexpected failure: %s", w.Body.String())
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data should be an object: %s", w.Body.String())
	return data
}

// dataList returns the data member of a successful response holding an array
func dataList(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, true, response["success"], "unexpected failure: %s", w.Body.String())
	data, ok := response["data"].([]interface{})
	require.True(t, ok, "data should be an array: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, false, response["success"], "expected an error response: %s", w.Body.String())
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "error should be an object: %s", w.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func checkoutFields() map[string]string {
	return map[string]string{
		"full_name":      "Jane Doe",
		"email":          "jane@example.com",
		"phone":          "0812345678",
		"address":        "12 Rose Street",
		"city":           "Bangkok",
		"country":        "TH",
		"postal_code":    "10110",
		"payment_method": "credit_card",
	}
}

func checkoutInput(method models.PaymentMethod) services.PlaceOrderInput {
	return services.PlaceOrderInput{
		FullName:      "Jane Doe",
		Email:         "jane@example.com",
		Phone:         "0812345678",
		Address:       "12 Rose Street",
		City:          "Bangkok",
		Country:       "TH",
		PostalCode:    "10110",
		PaymentMethod: method,
	}
}

// placeOrder fills the customer's cart and checks it out through the service
func (e *testEnv) placeOrder(t *testing.T, userID string, product models.Product, quantity int) *models.Order {
	t.Helper()

	testutil.AddCartItem(t, e.db, userID, product.ID, quantity)
	order, err := services.GetOrderService().PlaceOrder(context.Background(), userID, checkoutInput(models.PaymentMethodCreditCard))
	require.NoError(t, err)
	return order
}
