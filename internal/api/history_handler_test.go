package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// MockHistoryStore is a mock implementation of the history repository
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) List(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}

func (m *MockHistoryStore) GetByTimestamp(ctx context.Context, timestamp int64) (*models.HistoryEntry, error) {
	args := m.Called(ctx, timestamp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HistoryEntry), args.Error(1)
}

func (m *MockHistoryStore) UpdateResult(ctx context.Context, timestamp int64, text string, status models.ReputationStatus) error {
	args := m.Called(ctx, timestamp, text, status)
	return args.Error(0)
}

func (m *MockHistoryStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupHistoryHandler() (*HistoryHandler, *MockHistoryStore, *MockAnalyzer, *gin.Engine) {
	mockHistory := &MockHistoryStore{}
	mockAnalyzer := &MockAnalyzer{}

	handler := &HistoryHandler{
		history:  mockHistory,
		analyzer: mockAnalyzer,
		logger:   zap.NewNop(),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/history", handler.ListHistory)
	router.DELETE("/api/v1/history", handler.ClearHistory)
	router.POST("/api/v1/history/:timestamp/reanalyze", handler.Reanalyze)

	return handler, mockHistory, mockAnalyzer, router
}

func TestReanalyzeQueuesAnalysis(t *testing.T) {
	_, mockHistory, mockAnalyzer, router := setupHistoryHandler()

	entry := &models.HistoryEntry{
		Number:           "+81312345678",
		Timestamp:        1000,
		ReputationStatus: models.ReputationError,
		BlockType:        models.BlockAllowed,
	}
	mockHistory.On("GetByTimestamp", mock.Anything, int64(1000)).Return(entry, nil)
	mockHistory.On("UpdateResult", mock.Anything, int64(1000), "", models.ReputationPending).Return(nil)
	mockAnalyzer.On("EnqueueFresh", "+81312345678", int64(1000)).Return()

	req, _ := http.NewRequest("POST", "/api/v1/history/1000/reanalyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockHistory.AssertExpectations(t)
	mockAnalyzer.AssertExpectations(t)
}

func TestReanalyzeUnknownEntry(t *testing.T) {
	_, mockHistory, mockAnalyzer, router := setupHistoryHandler()

	mockHistory.On("GetByTimestamp", mock.Anything, int64(42)).Return(nil, nil)

	req, _ := http.NewRequest("POST", "/api/v1/history/42/reanalyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockAnalyzer.AssertNotCalled(t, "EnqueueFresh", mock.Anything, mock.Anything)
}

func TestReanalyzeWithheldNumberRejected(t *testing.T) {
	_, mockHistory, mockAnalyzer, router := setupHistoryHandler()

	entry := &models.HistoryEntry{
		Number:           "",
		Timestamp:        7,
		ReputationStatus: models.ReputationNone,
		BlockType:        models.BlockAllowed,
	}
	mockHistory.On("GetByTimestamp", mock.Anything, int64(7)).Return(entry, nil)

	req, _ := http.NewRequest("POST", "/api/v1/history/7/reanalyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockAnalyzer.AssertNotCalled(t, "EnqueueFresh", mock.Anything, mock.Anything)
}

func TestReanalyzeInvalidTimestamp(t *testing.T) {
	_, _, _, router := setupHistoryHandler()

	req, _ := http.NewRequest("POST", "/api/v1/history/not-a-number/reanalyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearHistory(t *testing.T) {
	_, mockHistory, _, router := setupHistoryHandler()

	mockHistory.On("Clear", mock.Anything).Return(nil)

	req, _ := http.NewRequest("DELETE", "/api/v1/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockHistory.AssertExpectations(t)
}
