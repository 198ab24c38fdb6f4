package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/repository"
	"merchant-panel-service/internal/services"
)

func setupInventoryRouter(svc *MockInventoryService) http.Handler {
	router := setupTestRouter()
	handler := NewInventoryHandler(svc, testPages, testLogger())
	sessions := router.Group("/inventory/sessions")
	{
		sessions.POST("", handler.OpenSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.DELETE("/:id", handler.CloseSession)
		sessions.POST("/:id/reload", handler.ReloadSession)
		sessions.PATCH("/:id/locations/:locationId", handler.EditQuantity)
		sessions.GET("/:id/changes", handler.GetChanges)
		sessions.POST("/:id/save", handler.SaveSession)
		sessions.POST("/:id/cancel", handler.CancelEdits)
		sessions.GET("/:id/export", handler.ExportSession)
		sessions.POST("/:id/import", handler.ImportQuantities)
	}
	router.GET("/inventory/history", handler.GetHistory)
	return router
}

func testSession() *models.InventorySession {
	return &models.InventorySession{
		ID:                 uuid.New(),
		MerchantID:         "merchant-1",
		ProductID:          100,
		Generation:         1,
		Locations:          []models.InventoryLocation{{LocationID: 1, Name: "Warehouse", Available: 5}},
		Quantities:         models.Quantities{1: 5},
		OriginalQuantities: models.Quantities{1: 5},
	}
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ===========================================
// Session Tests
// ===========================================

func TestOpenSession_Success(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	session := testSession()
	variant := int64(9)
	svc.On("OpenSession", mock.Anything, testCreds, "user-1", int64(100), &variant).Return(session, nil)

	w := doJSON(router, http.MethodPost, "/inventory/sessions", `{"productId":100,"variantId":9}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response models.InventorySessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, session.ID, response.Data.ID)
	svc.AssertExpectations(t)
}

func TestOpenSession_MissingProduct(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)

	w := doJSON(router, http.MethodPost, "/inventory/sessions", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession_Errors(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid id", "/inventory/sessions/not-a-uuid", nil, http.StatusBadRequest, "INVALID_ID"},
		{"not found", "/inventory/sessions/" + id.String(), services.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"store failure", "/inventory/sessions/" + id.String(), errors.New("redis: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInventoryService)
			if tt.err != nil {
				svc.On("GetSession", mock.Anything, "merchant-1", id).Return(nil, tt.err)
			}
			router := setupInventoryRouter(svc)

			w := doJSON(router, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestReloadSession_StaleLoad(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("Reload", mock.Anything, testCreds, id, int64(200), (*int64)(nil)).Return(nil, services.ErrStaleLoad)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+id.String()+"/reload", `{"productId":200}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "STALE_LOAD")
}

func TestCloseSession(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("Close", mock.Anything, "merchant-1", id).Return(nil)

	w := doJSON(router, http.MethodDelete, "/inventory/sessions/"+id.String(), "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

// ===========================================
// Edit Tests
// ===========================================

func TestEditQuantity_PassesRawInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		raw  string
	}{
		{"string input", `{"quantity":"12abc"}`, "12abc"},
		{"number input", `{"quantity":7.5}`, "7.5"},
		{"null input", `{"quantity":null}`, ""},
		{"missing input", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInventoryService)
			router := setupInventoryRouter(svc)
			session := testSession()
			svc.On("ApplyEdit", mock.Anything, "merchant-1", session.ID, int64(1), tt.raw).Return(session, nil)

			w := doJSON(router, http.MethodPatch, "/inventory/sessions/"+session.ID.String()+"/locations/1", tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestEditQuantity_Errors(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown location", services.ErrUnknownLocation, http.StatusNotFound, "LOCATION_NOT_FOUND"},
		{"loading", services.ErrSessionLoading, http.StatusConflict, "SESSION_LOADING"},
		{"version conflict", repository.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInventoryService)
			router := setupInventoryRouter(svc)
			svc.On("ApplyEdit", mock.Anything, "merchant-1", id, int64(8), "3").Return(nil, tt.err)

			w := doJSON(router, http.MethodPatch, "/inventory/sessions/"+id.String()+"/locations/8", `{"quantity":"3"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestGetChanges_EmptyIsArray(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("Changes", mock.Anything, "merchant-1", id).Return([]models.LocationQuantity{}, nil)

	w := doJSON(router, http.MethodGet, "/inventory/sessions/"+id.String()+"/changes", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestCancelEdits(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	session := testSession()
	svc.On("Cancel", mock.Anything, "merchant-1", session.ID).Return(session, nil)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+session.ID.String()+"/cancel", "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

// ===========================================
// Save Tests
// ===========================================

func TestSaveSession_Success(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	result := &models.SaveResult{
		SessionID:        id,
		Policy:           models.SavePolicyAllOrNothing,
		Attempted:        1,
		Succeeded:        []models.LocationSaveOutcome{{LocationID: 1, Quantity: 8, Succeeded: true}},
		Failed:           []models.LocationSaveOutcome{},
		SnapshotAdvanced: true,
	}
	svc.On("Save", mock.Anything, testCreds, "user-1", id, models.SavePolicy("")).Return(result, nil)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+id.String()+"/save", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var response models.SaveResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.True(t, response.Data.SnapshotAdvanced)
}

func TestSaveSession_PartialFailure(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	result := &models.SaveResult{
		SessionID: id,
		Policy:    models.SavePolicyAdvanceSucceeded,
		Attempted: 2,
		Succeeded: []models.LocationSaveOutcome{{LocationID: 1, Quantity: 8, Succeeded: true}},
		Failed:    []models.LocationSaveOutcome{{LocationID: 2, Quantity: 3, Error: "platform returned 500"}},
	}
	svc.On("Save", mock.Anything, testCreds, "user-1", id, models.SavePolicyAdvanceSucceeded).
		Return(result, services.ErrPartialSave)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+id.String()+"/save?policy=advance_succeeded", "")

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	var response models.SaveResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Success)
	require.Len(t, response.Data.Failed, 1)
	assert.Equal(t, int64(2), response.Data.Failed[0].LocationID)
	assert.Equal(t, "1 of 2 location updates failed", *response.Message)
}

func TestSaveSession_InvalidPolicy(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("Save", mock.Anything, testCreds, "user-1", id, models.SavePolicy("yolo")).Return(nil, services.ErrInvalidPolicy)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+id.String()+"/save?policy=yolo", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ===========================================
// Sheet Tests
// ===========================================

func TestExportSession(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("ExportSession", mock.Anything, "merchant-1", id).Return([]byte("PK-fake-xlsx"), nil)

	w := doJSON(router, http.MethodGet, "/inventory/sessions/"+id.String()+"/export", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), id.String())
	assert.Equal(t, "PK-fake-xlsx", w.Body.String())
}

func TestImportQuantities_Multipart(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	id := uuid.New()
	svc.On("ImportQuantities", mock.Anything, "merchant-1", id, "stock.csv", mock.Anything).
		Return(&services.SheetImportResult{TotalRows: 1, Applied: 1, Errors: []services.SheetRowError{}}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("locationId,quantity\n1,4\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/inventory/sessions/"+id.String()+"/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"applied":1`)
	svc.AssertExpectations(t)
}

func TestImportQuantities_MissingFile(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)

	w := doJSON(router, http.MethodPost, "/inventory/sessions/"+uuid.New().String()+"/import", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_FILE")
}

// ===========================================
// History Tests
// ===========================================

func TestGetHistory(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)
	records := []models.InventorySaveRecord{{MerchantID: "merchant-1", ProductID: 100, LocationID: 1, Succeeded: true}}
	svc.On("History", mock.Anything, "merchant-1", int64(100), 1, 20).Return(records, models.NewPaginationMeta(1, 20, 1), nil)

	w := doJSON(router, http.MethodGet, "/inventory/history?productId=100", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var response models.SaveRecordListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	svc.AssertExpectations(t)
}

func TestGetHistory_MissingProduct(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupInventoryRouter(svc)

	w := doJSON(router, http.MethodGet, "/inventory/history", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
