package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/mutual_aid_system/internal/config"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	authService         service.AuthService
	emergencyService    service.EmergencyService
	notificationService service.NotificationService
	historyService      service.HistoryService
	userService         service.UserService
	logger              *logrus.Logger
	validate            *validator.Validate
	cfg                 *config.Config
}

func NewHandler(
	authService service.AuthService,
	emergencyService service.EmergencyService,
	notificationService service.NotificationService,
	historyService service.HistoryService,
	userService service.UserService,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authService:         authService,
		emergencyService:    emergencyService,
		notificationService: notificationService,
		historyService:      historyService,
		userService:         userService,
		logger:              logger,
		validate:            validator.New(),
		cfg:                 cfg,
	}
}

// @Summary Register a new user
// @Description Register a new user and return an access token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration request"
// @Success 201 {object} TokenResponse
// @Failure 400 {object} map[string]string "Invalid request body, validation error or duplicate user"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input RegisterRequest
	log := h.logger.WithField("method", "register")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		FullName:    input.FullName,
		PhoneNumber: input.PhoneNumber,
		Email:       input.Email,
		Password:    input.Password,
		GetHelp:     input.GetHelp,
		OfferHelp:   input.OfferHelp,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user with this phone number or email already exists"})
			return
		}
		log.WithError(err).Error("Failed to register user in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		FullName:    user.FullName,
	})
}

// @Summary Log in
// @Description Log in with email or phone number and return an access token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login request"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Incorrect username or password"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input LoginRequest
	log := h.logger.WithField("method", "login")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, user, err := h.authService.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
			return
		}
		log.WithError(err).Error("Failed to log user in")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		FullName:    user.FullName,
	})
}

// @Summary Create a new emergency
// @Description Broadcast a new SOS. Every other user receives an alert notification.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param emergency body CreateEmergencyRequest true "Emergency creation request"
// @Success 201 {object} EmergencyResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies [post]
func (h *Handler) createEmergency(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var input CreateEmergencyRequest
	log := h.logger.WithField("method", "createEmergency")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emergency, err := h.emergencyService.Create(c.Request.Context(), user, input.Category, input.Description, input.Latitude, input.Longitude)
	if err != nil {
		log.WithError(err).Error("Failed to create emergency in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, ModelToEmergencyResponse(emergency))
}

// @Summary List active emergencies
// @Description List all active emergencies with the count of recently active helpers.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} NearbyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/nearby [get]
func (h *Handler) nearbyEmergencies(c *gin.Context) {
	log := h.logger.WithField("method", "nearbyEmergencies")

	emergencies, activeHelpers, err := h.emergencyService.ListActive(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list active emergencies from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, NearbyResponse{
		Emergencies:   ModelsToEmergencyResponses(emergencies),
		ActiveHelpers: activeHelpers,
	})
}

// @Summary Accept an emergency
// @Description Claim an active emergency. Exactly one concurrent caller wins; everyone else gets a conflict.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Emergency ID"
// @Success 200 {object} map[string]string "Status"
// @Failure 400 {object} map[string]string "Invalid emergency ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Emergency not found or already accepted"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/{id}/accept [post]
func (h *Handler) acceptEmergency(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency ID"})
		return
	}
	log := h.logger.WithField("method", "acceptEmergency").WithField("id", id)

	if _, err := h.emergencyService.Accept(c.Request.Context(), id, user); err != nil {
		if errors.Is(err, service.ErrEmergencyConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "emergency not found or already accepted"})
			return
		}
		log.WithError(err).Error("Failed to accept emergency in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Emergency accepted"})
}

// @Summary Complete an emergency
// @Description Confirm help and resolve the emergency. Only the original requester may complete it.
// @Tags Emergencies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Emergency ID"
// @Success 200 {object} map[string]string "Status"
// @Failure 400 {object} map[string]string "Invalid emergency ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Caller is not the requester"
// @Failure 404 {object} map[string]string "Emergency not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /emergencies/{id}/complete [post]
func (h *Handler) completeEmergency(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency ID"})
		return
	}
	log := h.logger.WithField("method", "completeEmergency").WithField("id", id)

	if err := h.emergencyService.Complete(c.Request.Context(), id, user); err != nil {
		switch {
		case errors.Is(err, service.ErrEmergencyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "emergency not found"})
		case errors.Is(err, service.ErrNotRequester):
			c.JSON(http.StatusForbidden, gin.H{"error": "you are not authorized to complete this emergency"})
		default:
			log.WithError(err).Error("Failed to complete emergency in service")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Emergency resolved"})
}

// @Summary Get inbox
// @Description Get the most recent notifications for the current user, newest first.
// @Tags Inbox
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} NotificationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /inbox [get]
func (h *Handler) getInbox(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	log := h.logger.WithField("method", "getInbox")

	notifications, err := h.notificationService.Inbox(c.Request.Context(), user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to list inbox from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToNotificationResponses(notifications))
}

// @Summary Mark a notification as read
// @Description Mark one of the current user's notifications as read. A foreign or unknown notification is a silent no-op.
// @Tags Inbox
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string "Status"
// @Failure 400 {object} map[string]string "Invalid notification ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /inbox/{id}/read [post]
func (h *Handler) readNotification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}
	log := h.logger.WithField("method", "readNotification").WithField("id", id)

	if err := h.notificationService.MarkRead(c.Request.Context(), id, user.ID); err != nil {
		log.WithError(err).Error("Failed to mark notification as read in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Read"})
}

// @Summary Get history
// @Description Get the current user's requested and responded emergencies as one time-ordered feed.
// @Tags History
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} HistoryEntryResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /history [get]
func (h *Handler) getHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	log := h.logger.WithField("method", "getHistory")

	entries, err := h.historyService.For(c.Request.Context(), user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to assemble history in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToHistoryResponses(entries))
}

// @Summary Update current location
// @Description Store the user's last location and bump the activity timestamp.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location body LocationUpdateRequest true "Location update request"
// @Success 200 {object} map[string]string "Status"
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /users/me/location [post]
func (h *Handler) updateLocation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var input LocationUpdateRequest
	log := h.logger.WithField("method", "updateLocation")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.UpdateLocation(c.Request.Context(), user.ID, input.Latitude, input.Longitude); err != nil {
		log.WithError(err).Error("Failed to update location in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Location updated"})
}

// @Summary Get current user profile
// @Description Get the current user's profile with reward counters and local rank.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /users/me/profile [get]
func (h *Handler) getProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	log := h.logger.WithField("method", "getProfile")

	profile, err := h.userService.Profile(c.Request.Context(), user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to get profile from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelToProfileResponse(profile))
}

// @Summary Update current user settings
// @Description Replace the current user's settings.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param settings body SettingsRequest true "Settings update request"
// @Success 200 {object} map[string]string "Status"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /users/me/settings [put]
func (h *Handler) updateSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var input SettingsRequest
	log := h.logger.WithField("method", "updateSettings")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	settings := models.UserSettings{
		GetHelp:     input.GetHelp,
		OfferHelp:   input.OfferHelp,
		PushEnabled: input.PushEnabled,
	}
	if err := h.userService.UpdateSettings(c.Request.Context(), user.ID, settings); err != nil {
		log.WithError(err).Error("Failed to update settings in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Settings updated"})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
