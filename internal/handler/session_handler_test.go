package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/middleware"
	"github.com/noah-isme/edt-scheduler/internal/models"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

type sessionControllerMock struct {
	sessionController
	captured dto.SessionForm
	createFn func(form dto.SessionForm) (*models.OperationResult, error)
	moveFn   func(id int, req dto.MoveSessionRequest) (*models.MoveOutcome, error)
}

func (m *sessionControllerMock) List(ctx context.Context, query dto.SessionQuery) []models.Session {
	return []models.Session{{ID: 1, Day: models.Monday, Slot: "8h30"}}
}

func (m *sessionControllerMock) Create(ctx context.Context, form dto.SessionForm) (*models.OperationResult, error) {
	m.captured = form
	return m.createFn(form)
}

func (m *sessionControllerMock) Move(ctx context.Context, id int, req dto.MoveSessionRequest) (*models.MoveOutcome, error) {
	return m.moveFn(id, req)
}

func newSessionHandler(svc sessionController) *SessionHandler {
	return &SessionHandler{service: svc, logger: zap.NewNop()}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateSessionReturnsCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &sessionControllerMock{createFn: func(form dto.SessionForm) (*models.OperationResult, error) {
		return &models.OperationResult{Success: true, Session: &models.Session{ID: 7}, Message: "session created"}, nil
	}}
	handler := newSessionHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/sessions", `{"day":"Lundi","slot":"8h30","type":"TD","subject":"Algo","filiere":"GI","section":"A","meta":{"force":true}}`)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Algo", mock.captured.Subject)
	assert.True(t, mock.captured.Override())
}

func TestCreateSessionConflictCarriesMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &sessionControllerMock{createFn: func(form dto.SessionForm) (*models.OperationResult, error) {
		detail := &models.ConflictError{Conflicts: []models.Conflict{{Kind: models.ConflictRoom, Detail: "room A1 busy", SessionID: 3}}}
		return nil, appErrors.CloneWrap(appErrors.ErrConflict, detail, "operation rejected by conflicts")
	}}
	handler := newSessionHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/sessions", `{"day":"Lundi"}`)
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	require.NotNil(t, body.Error)
	assert.Equal(t, appErrors.ErrConflict.Code, body.Error.Code)
	assert.Equal(t, true, body.Meta["overridePossible"])
	assert.Len(t, body.Meta["conflicts"], 1)
}

func TestCreateSessionValidationCarriesMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &sessionControllerMock{createFn: func(form dto.SessionForm) (*models.OperationResult, error) {
		detail := &models.ValidationError{Missing: []string{"room"}}
		return nil, appErrors.CloneWrap(appErrors.ErrValidation, detail, "validation failed")
	}}
	handler := newSessionHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/sessions", `{}`)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"room"}, decode(t, w).Meta["missing"])
}

func TestCreateSessionRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newSessionHandler(&sessionControllerMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/sessions", `{"day":`)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMoveAwaitingConfirmationIsAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotID int
	mock := &sessionControllerMock{moveFn: func(id int, req dto.MoveSessionRequest) (*models.MoveOutcome, error) {
		gotID = id
		return &models.MoveOutcome{Status: models.MoveAwaitingConfirmation, SuggestedRoom: "A4"}, nil
	}}
	router := gin.New()
	router.POST("/sessions/:id/move", newSessionHandler(mock).Move)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPost, "/sessions/2/move", `{"day":"Mercredi","slot":"10h15","room":"A1"}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2, gotID)
	var outcome models.MoveOutcome
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &outcome))
	assert.Equal(t, "A4", outcome.SuggestedRoom)
}

func TestMoveRejectsInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/sessions/:id/move", newSessionHandler(&sessionControllerMock{}).Move)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPost, "/sessions/abc/move", `{}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutesEnforceRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &sessionControllerMock{createFn: func(form dto.SessionForm) (*models.OperationResult, error) {
		return &models.OperationResult{Success: true}, nil
	}}
	router := gin.New()
	Routes{
		Sessions: newSessionHandler(mock),
		Auth: tokenTable{
			"viewer":  {UserID: "v", Role: models.RoleViewer},
			"planner": {UserID: "p", Role: models.RolePlanner},
		},
	}.Register(router.Group("/api/v1"))

	send := func(method, path, token string) int {
		req := jsonRequest(method, path, `{}`)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/api/v1/sessions", ""))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/sessions", "viewer"))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/v1/sessions", "viewer"))
	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/sessions", "planner"))
}

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

var _ middleware.TokenValidator = tokenTable{}
