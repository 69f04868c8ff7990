package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/jwt"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/general/memstore"
	"delivery-track/internal/general/websocket"
	"delivery-track/internal/software/routing"
	"delivery-track/internal/software/tracking/handler"
	"delivery-track/internal/software/tracking/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *httptest.Server
	mgr   *jwt.Manager
	store *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lg := logger.New("test")
	store := memstore.NewOpen()
	mgr := jwt.NewManager("handler-test-secret", time.Hour)

	svc := service.NewTrackingService(lg, store, store, store, store, nil, service.Options{
		BaseLinkURL: "https://host/t",
		TokenTTL:    24 * time.Hour,
	})
	estimator := routing.NewEstimator(lg, nil, routing.EstimatorOptions{})
	ws := websocket.NewWebSocket(lg, mgr, svc, websocket.Options{})

	mux := http.NewServeMux()
	handler.NewTrackingHTTPHandler(svc, estimator, lg, mgr, ws).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, mgr: mgr, store: store}
}

func (f *fixture) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()
	token, _, err := f.mgr.IssueUserToken(userID, role)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type sessionBody struct {
	DeliveryID   string `json:"delivery_id"`
	Status       string `json:"status"`
	TrackingLink string `json:"tracking_link"`
}

func createDelivery(t *testing.T, f *fixture, driverToken string) sessionBody {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/deliveries", driverToken,
		map[string]string{"receiver_phone": "+250788123456"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[sessionBody](t, resp)
}

func TestCreateDelivery(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "driver-1", user.RoleDriver)

	body := createDelivery(t, f, token)
	assert.NotEmpty(t, body.DeliveryID)
	assert.Equal(t, "PENDING", body.Status)
	assert.Contains(t, body.TrackingLink, "https://host/t/dt1_")
}

func TestCreateDelivery_AuthRequired(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/deliveries", "",
		map[string]string{"receiver_phone": "+250788123456"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// receivers cannot open sessions
	resp = f.do(t, http.MethodPost, "/deliveries", f.token(t, "r-1", user.RoleReceiver),
		map[string]string{"receiver_phone": "+250788123456"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateDelivery_EntitlementDenied(t *testing.T) {
	f := newFixture(t)
	f.store.SetEntitlement("driver-1", false)

	resp := f.do(t, http.MethodPost, "/deliveries", f.token(t, "driver-1", user.RoleDriver),
		map[string]string{"receiver_phone": "+250788123456"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateDelivery_BadBody(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "driver-1", user.RoleDriver)

	resp := f.do(t, http.MethodPost, "/deliveries", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/deliveries", token,
		map[string]string{"receiver_phone": "+250", "unknown_field": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompleteDelivery_Lifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "driver-1", user.RoleDriver)
	created := createDelivery(t, f, token)

	// completing straight from PENDING is an invalid transition
	resp := f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// cancel the pending session, then repeat: still 200
	resp = f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[sessionBody](t, resp)
	assert.Equal(t, "CANCELLED", body.Status)

	resp = f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/cancel", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "repeated terminal transition stays idempotent")

	// but crossing terminal states conflicts
	resp = f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDelivery_Ownership(t *testing.T) {
	f := newFixture(t)
	created := createDelivery(t, f, f.token(t, "driver-1", user.RoleDriver))
	intruder := f.token(t, "driver-2", user.RoleDriver)

	resp := f.do(t, http.MethodGet, "/deliveries/"+created.DeliveryID, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/cancel", intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/deliveries/no-such-id", intruder, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelivery_AdminRead(t *testing.T) {
	f := newFixture(t)
	created := createDelivery(t, f, f.token(t, "driver-1", user.RoleDriver))
	admin := f.token(t, "ops-1", user.RoleAdmin)

	resp := f.do(t, http.MethodGet, "/deliveries/"+created.DeliveryID, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[sessionBody](t, resp)
	assert.Equal(t, created.DeliveryID, body.DeliveryID)

	resp = f.do(t, http.MethodGet, "/deliveries/no-such-id", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// admins read, they do not drive the lifecycle
	resp = f.do(t, http.MethodPost, "/deliveries/"+created.DeliveryID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTrackingLink(t *testing.T) {
	f := newFixture(t)
	created := createDelivery(t, f, f.token(t, "driver-1", user.RoleDriver))

	token := created.TrackingLink[len("https://host/t/"):]
	resp := f.do(t, http.MethodGet, "/t/"+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, created.DeliveryID, body["delivery_id"])

	resp = f.do(t, http.MethodGet, "/t/dt1_bm90LWEtcmVhbC10b2tlbg", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackingLink_Expired(t *testing.T) {
	lg := logger.New("test")
	store := memstore.NewOpen()
	mgr := jwt.NewManager("handler-test-secret", time.Hour)
	svc := service.NewTrackingService(lg, store, store, store, store, nil, service.Options{
		BaseLinkURL: "https://host/t",
		TokenTTL:    -time.Minute,
	})
	estimator := routing.NewEstimator(lg, nil, routing.EstimatorOptions{})
	ws := websocket.NewWebSocket(lg, mgr, svc, websocket.Options{})

	mux := http.NewServeMux()
	handler.NewTrackingHTTPHandler(svc, estimator, lg, mgr, ws).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &fixture{srv: srv, mgr: mgr, store: store}
	created := createDelivery(t, f, f.token(t, "driver-1", user.RoleDriver))

	token := created.TrackingLink[len("https://host/t/"):]
	resp := f.do(t, http.MethodGet, "/t/"+token, "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestEstimateRoute(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/routes/estimate", "", map[string]float64{
		"start_latitude":  -1.9441,
		"start_longitude": 30.0619,
		"end_latitude":    -1.9706,
		"end_longitude":   30.1044,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "interpolated", body["source"])
	assert.Len(t, body["polyline"], 10)
	assert.Greater(t, body["distance_km"].(float64), 0.0)
}

func TestEstimateRoute_InvalidCoordinates(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/routes/estimate", "", map[string]float64{
		"start_latitude":  95,
		"start_longitude": 30.0619,
		"end_latitude":    -1.9706,
		"end_longitude":   30.1044,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/deliveries/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
