package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// MockRuleStore is a mock implementation of the rule repository
type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) List(ctx context.Context) ([]models.Rule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rule), args.Error(1)
}

func (m *MockRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rule), args.Error(1)
}

func (m *MockRuleStore) Save(ctx context.Context, rule *models.Rule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRuleStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRuleStore) Reorder(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func setupRuleHandler() (*RuleHandler, *MockRuleStore, *gin.Engine) {
	mockRules := &MockRuleStore{}
	handler := &RuleHandler{
		rules:  mockRules,
		logger: zap.NewNop(),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/rules", handler.ListRules)
	router.POST("/api/v1/rules", handler.CreateRule)
	router.PUT("/api/v1/rules/reorder", handler.ReorderRules)
	router.PUT("/api/v1/rules/:id", handler.UpdateRule)
	router.DELETE("/api/v1/rules/:id", handler.DeleteRule)

	return handler, mockRules, router
}

func TestCreateRule(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	mockRules.On("Save", mock.Anything, mock.AnythingOfType("*models.Rule")).Return(nil)

	body, _ := json.Marshal(models.CreateRuleRequest{
		Name: "block freephone",
		Conditions: []models.Condition{
			{Type: models.ConditionPattern, Pattern: "^0800"},
		},
	})
	req, _ := http.NewRequest("POST", "/api/v1/rules", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	saved := mockRules.Calls[0].Arguments.Get(1).(*models.Rule)
	assert.Equal(t, "block freephone", saved.Name)
	assert.True(t, saved.Enabled, "rules are enabled by default")
	assert.Equal(t, models.ActionReject, saved.Action, "reject is the default action")
	assert.NotEqual(t, uuid.Nil, saved.ID)

	mockRules.AssertExpectations(t)
}

func TestCreateRuleDropsUnsupportedConditions(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	mockRules.On("Save", mock.Anything, mock.AnythingOfType("*models.Rule")).Return(nil)

	body := `{
		"name": "imported",
		"conditions": [
			{"type": "country", "pattern": "JP"},
			{"type": "pattern", "pattern": "^0800"},
			{"type": "reputation"}
		]
	}`
	req, _ := http.NewRequest("POST", "/api/v1/rules", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	saved := mockRules.Calls[0].Arguments.Get(1).(*models.Rule)
	assert.Len(t, saved.Conditions, 1, "unknown types and keywordless reputation conditions are dropped")
	assert.Equal(t, models.ConditionPattern, saved.Conditions[0].Type)
}

func TestCreateRuleRejectsUnknownAction(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	req, _ := http.NewRequest("POST", "/api/v1/rules",
		bytes.NewBufferString(`{"name":"bad","action":"explode"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRules.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateRuleNotFound(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	id := uuid.New()
	mockRules.On("GetByID", mock.Anything, id).Return(nil, nil)

	req, _ := http.NewRequest("PUT", "/api/v1/rules/"+id.String(),
		bytes.NewBufferString(`{"enabled":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRuleAppliesPartialChanges(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	id := uuid.New()
	existing := &models.Rule{
		ID:      id,
		Name:    "block freephone",
		Enabled: true,
		Action:  models.ActionReject,
		Conditions: []models.Condition{
			{Type: models.ConditionPattern, Pattern: "^0800"},
		},
	}
	mockRules.On("GetByID", mock.Anything, id).Return(existing, nil)
	mockRules.On("Save", mock.Anything, mock.AnythingOfType("*models.Rule")).Return(nil)

	req, _ := http.NewRequest("PUT", "/api/v1/rules/"+id.String(),
		bytes.NewBufferString(`{"enabled":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	saved := mockRules.Calls[1].Arguments.Get(1).(*models.Rule)
	assert.False(t, saved.Enabled)
	assert.Equal(t, "block freephone", saved.Name, "unspecified fields are untouched")
	assert.Len(t, saved.Conditions, 1)
}

func TestDeleteRuleNotFound(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	id := uuid.New()
	mockRules.On("Delete", mock.Anything, id).Return(repository.ErrNotFound)

	req, _ := http.NewRequest("DELETE", "/api/v1/rules/"+id.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReorderRules(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mockRules.On("Reorder", mock.Anything, ids).Return(nil)

	body, _ := json.Marshal(models.ReorderRulesRequest{IDs: ids})
	req, _ := http.NewRequest("PUT", "/api/v1/rules/reorder", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRules.AssertExpectations(t)
}

func TestReorderRulesIncompleteSetIsBadRequest(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	ids := []uuid.UUID{uuid.New()}
	mockRules.On("Reorder", mock.Anything, ids).
		Return(fmt.Errorf("%w: expected all 3 rules, got 1", repository.ErrInvalidReorder))

	body, _ := json.Marshal(models.ReorderRulesRequest{IDs: ids})
	req, _ := http.NewRequest("PUT", "/api/v1/rules/reorder", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorderRulesStoreFailureIsServerError(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	ids := []uuid.UUID{uuid.New()}
	mockRules.On("Reorder", mock.Anything, ids).Return(assert.AnError)

	body, _ := json.Marshal(models.ReorderRulesRequest{IDs: ids})
	req, _ := http.NewRequest("PUT", "/api/v1/rules/reorder", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListRulesEmpty(t *testing.T) {
	_, mockRules, router := setupRuleHandler()

	mockRules.On("List", mock.Anything).Return([]models.Rule(nil), nil)

	req, _ := http.NewRequest("GET", "/api/v1/rules", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.JSONEq(t, "[]", string(response["rules"]), "empty list, not null")
}
