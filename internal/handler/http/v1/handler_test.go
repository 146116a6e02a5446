package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/config"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
	"github.com/shenikar/mutual_aid_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// testMocks - все сервисные моки хэндлера в одном месте
type testMocks struct {
	auth          *mocks.MockAuthService
	emergencies   *mocks.MockEmergencyService
	notifications *mocks.MockNotificationService
	history       *mocks.MockHistoryService
	users         *mocks.MockUserService
}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) (*testMocks, *gin.Engine) {
	ctrl := gomock.NewController(t)
	m := &testMocks{
		auth:          mocks.NewMockAuthService(ctrl),
		emergencies:   mocks.NewMockEmergencyService(ctrl),
		notifications: mocks.NewMockNotificationService(ctrl),
		history:       mocks.NewMockHistoryService(ctrl),
		users:         mocks.NewMockUserService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		ActiveWindowMinutes: 60,
		InboxLimit:          50,
	}

	handler := NewHandler(m.auth, m.emergencies, m.notifications, m.history, m.users, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return m, router
}

// authorize настраивает разрешение тестового токена в переданного пользователя
func authorize(m *testMocks, user *models.User) map[string]string {
	m.auth.EXPECT().
		Identify(gomock.Any(), "test-token").
		Return(user, nil).
		Times(1)
	return map[string]string{"Authorization": "Bearer test-token"}
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	m, router := newTestHandler(t)
	reqBody := RegisterRequest{
		FullName:    "Мария Петрова",
		PhoneNumber: "+79001234567",
		Password:    "secret123",
		GetHelp:     true,
	}
	user := &models.User{ID: uuid.New(), FullName: reqBody.FullName}

	m.auth.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return("access-token", user, nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "Мария Петрова", resp.FullName)
}

func TestRegister_Duplicate(t *testing.T) {
	m, router := newTestHandler(t)
	reqBody := RegisterRequest{
		FullName:    "Мария Петрова",
		PhoneNumber: "+79001234567",
		Password:    "secret123",
	}

	m.auth.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return("", nil, service.ErrUserExists).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestRegister_ValidationError(t *testing.T) {
	m, router := newTestHandler(t)
	reqBody := RegisterRequest{ // Отсутствует пароль
		FullName:    "Мария Петрова",
		PhoneNumber: "+79001234567",
	}

	m.auth.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/register", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Password' failed on the 'required' tag")
}

func TestLogin_Success(t *testing.T) {
	m, router := newTestHandler(t)
	reqBody := LoginRequest{Username: "+79001234567", Password: "secret123"}
	user := &models.User{ID: uuid.New(), FullName: "Мария Петрова"}

	m.auth.EXPECT().
		Login(gomock.Any(), "+79001234567", "secret123").
		Return("access-token", user, nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/login", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	m, router := newTestHandler(t)
	reqBody := LoginRequest{Username: "+79001234567", Password: "wrong"}

	m.auth.EXPECT().
		Login(gomock.Any(), "+79001234567", "wrong").
		Return("", nil, service.ErrInvalidCredentials).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/auth/login", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "incorrect username or password")
}

func TestCreateEmergency_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New(), FullName: "Мария Петрова"}
	headers := authorize(m, user)
	reqBody := CreateEmergencyRequest{
		Category:  "medical",
		Latitude:  55.75,
		Longitude: 37.61,
	}
	created := &models.Emergency{
		ID:            uuid.New(),
		Category:      "medical",
		Latitude:      55.75,
		Longitude:     37.61,
		RequesterID:   user.ID,
		RequesterName: user.FullName,
		Status:        models.EmergencyStatusActive,
		CreatedAt:     time.Now(),
	}

	m.emergencies.EXPECT().
		Create(gomock.Any(), user, "medical", "", 55.75, 37.61).
		Return(created, nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/emergencies", bytes.NewBuffer(bodyBytes), headers)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp EmergencyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "Мария Петрова", resp.CreatedBy)
	assert.Equal(t, string(models.EmergencyStatusActive), resp.Status)
}

func TestCreateEmergency_MissingBearer(t *testing.T) {
	_, router := newTestHandler(t)
	bodyBytes, _ := json.Marshal(CreateEmergencyRequest{Category: "medical", Latitude: 55.75, Longitude: 37.61})

	w := makeRequest(router, "POST", "/api/v1/emergencies", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authorization required")
}

func TestCreateEmergency_InvalidToken(t *testing.T) {
	m, router := newTestHandler(t)
	m.auth.EXPECT().
		Identify(gomock.Any(), "garbage").
		Return(nil, service.ErrInvalidToken).
		Times(1)

	bodyBytes, _ := json.Marshal(CreateEmergencyRequest{Category: "medical", Latitude: 55.75, Longitude: 37.61})
	w := makeRequest(router, "POST", "/api/v1/emergencies", bytes.NewBuffer(bodyBytes), map[string]string{"Authorization": "Bearer garbage"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "could not validate credentials")
}

func TestNearbyEmergencies_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	active := []*models.Emergency{
		{ID: uuid.New(), Category: "fire", Status: models.EmergencyStatusActive},
	}

	m.emergencies.EXPECT().
		ListActive(gomock.Any()).
		Return(active, 4, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/emergencies/nearby", nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp NearbyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Emergencies, 1)
	assert.Equal(t, 4, resp.ActiveHelpers)
}

func TestAcceptEmergency_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New(), FullName: "Пётр Сидоров"}
	headers := authorize(m, user)
	emergencyID := uuid.New()
	accepted := &models.Emergency{ID: emergencyID, Status: models.EmergencyStatusAccepted}

	m.emergencies.EXPECT().
		Accept(gomock.Any(), emergencyID, user).
		Return(accepted, nil).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Emergency accepted")
}

func TestAcceptEmergency_Conflict(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	emergencyID := uuid.New()

	m.emergencies.EXPECT().
		Accept(gomock.Any(), emergencyID, user).
		Return(nil, service.ErrEmergencyConflict).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/accept", emergencyID), nil, headers)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "not found or already accepted")
}

func TestAcceptEmergency_InvalidID(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)

	m.emergencies.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/emergencies/not-a-uuid/accept", nil, headers)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid emergency ID")
}

func TestCompleteEmergency_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	emergencyID := uuid.New()

	m.emergencies.EXPECT().
		Complete(gomock.Any(), emergencyID, user).
		Return(nil).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/complete", emergencyID), nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Emergency resolved")
}

func TestCompleteEmergency_NotFound(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	emergencyID := uuid.New()

	m.emergencies.EXPECT().
		Complete(gomock.Any(), emergencyID, user).
		Return(service.ErrEmergencyNotFound).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/complete", emergencyID), nil, headers)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "emergency not found")
}

func TestCompleteEmergency_Forbidden(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	emergencyID := uuid.New()

	m.emergencies.EXPECT().
		Complete(gomock.Any(), emergencyID, user).
		Return(service.ErrNotRequester).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/emergencies/%s/complete", emergencyID), nil, headers)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not authorized to complete")
}

func TestGetInbox_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	notifications := []*models.Notification{
		{ID: uuid.New(), UserID: user.ID, Title: "Emergency Alert", Kind: models.NotificationKindAlert},
		{ID: uuid.New(), UserID: user.ID, Title: "Reward Earned", Kind: models.NotificationKindReward},
	}

	m.notifications.EXPECT().
		Inbox(gomock.Any(), user.ID).
		Return(notifications, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/inbox", nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "Emergency Alert", resp[0].Title)
}

func TestReadNotification_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	notificationID := uuid.New()

	m.notifications.EXPECT().
		MarkRead(gomock.Any(), notificationID, user.ID).
		Return(nil).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/inbox/%s/read", notificationID), nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Read")
}

func TestGetHistory_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	entries := []*models.HistoryEntry{
		{
			EmergencyID:  uuid.New(),
			Role:         models.HistoryRoleResponded,
			Category:     "medical",
			Counterparty: "Мария Петрова",
			Status:       models.EmergencyStatusResolved,
			PointsEarned: 20,
			CreatedAt:    time.Now(),
		},
	}

	m.history.EXPECT().
		For(gomock.Any(), user.ID).
		Return(entries, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/history", nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []HistoryEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, string(models.HistoryRoleResponded), resp[0].Role)
	assert.Equal(t, 20, resp[0].PointsEarned)
}

func TestUpdateLocation_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	reqBody := LocationUpdateRequest{Latitude: 55.75, Longitude: 37.61}

	m.users.EXPECT().
		UpdateLocation(gomock.Any(), user.ID, 55.75, 37.61).
		Return(nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/users/me/location", bytes.NewBuffer(bodyBytes), headers)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Location updated")
}

func TestGetProfile_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	profile := &models.UserProfile{
		FullName:   "Мария Петрова",
		Points:     40,
		HelpsGiven: 2,
		LocalRank:  8,
		Verified:   true,
	}

	m.users.EXPECT().
		Profile(gomock.Any(), user.ID).
		Return(profile, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/users/me/profile", nil, headers)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Points)
	assert.Equal(t, 8, resp.LocalRank)
}

func TestUpdateSettings_Success(t *testing.T) {
	m, router := newTestHandler(t)
	user := &models.User{ID: uuid.New()}
	headers := authorize(m, user)
	reqBody := SettingsRequest{GetHelp: true, OfferHelp: true, PushEnabled: false}

	m.users.EXPECT().
		UpdateSettings(gomock.Any(), user.ID, models.UserSettings{GetHelp: true, OfferHelp: true, PushEnabled: false}).
		Return(nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "PUT", "/api/v1/users/me/settings", bytes.NewBuffer(bodyBytes), headers)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Settings updated")
}

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
