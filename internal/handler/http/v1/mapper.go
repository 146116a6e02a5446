package v1

import "github.com/shenikar/mutual_aid_system/internal/models"

// ModelToEmergencyResponse преобразует доменную модель в DTO для ответа
func ModelToEmergencyResponse(model *models.Emergency) *EmergencyResponse {
	resp := &EmergencyResponse{
		ID:          model.ID,
		Category:    model.Category,
		Description: model.Description,
		Latitude:    model.Latitude,
		Longitude:   model.Longitude,
		CreatedBy:   model.RequesterName,
		Status:      string(model.Status),
		CreatedAt:   model.CreatedAt,
	}
	if model.HelperName != nil {
		resp.HelperName = *model.HelperName
	}
	return resp
}

// ModelsToEmergencyResponses преобразует слайс моделей в слайс DTO
func ModelsToEmergencyResponses(emergencies []*models.Emergency) []*EmergencyResponse {
	responses := make([]*EmergencyResponse, len(emergencies))
	for i, model := range emergencies {
		responses[i] = ModelToEmergencyResponse(model)
	}
	return responses
}

// ModelsToNotificationResponses преобразует уведомления в DTO
func ModelsToNotificationResponses(notifications []*models.Notification) []*NotificationResponse {
	responses := make([]*NotificationResponse, len(notifications))
	for i, model := range notifications {
		responses[i] = &NotificationResponse{
			ID:        model.ID,
			Title:     model.Title,
			Body:      model.Body,
			Kind:      string(model.Kind),
			IsRead:    model.IsRead,
			CreatedAt: model.CreatedAt,
		}
	}
	return responses
}

// ModelsToHistoryResponses преобразует записи истории в DTO
func ModelsToHistoryResponses(entries []*models.HistoryEntry) []*HistoryEntryResponse {
	responses := make([]*HistoryEntryResponse, len(entries))
	for i, model := range entries {
		responses[i] = &HistoryEntryResponse{
			EmergencyID:  model.EmergencyID,
			Role:         string(model.Role),
			Category:     model.Category,
			Description:  model.Description,
			Counterparty: model.Counterparty,
			Status:       string(model.Status),
			PointsEarned: model.PointsEarned,
			CreatedAt:    model.CreatedAt,
		}
	}
	return responses
}

// ModelToProfileResponse преобразует профиль в DTO
func ModelToProfileResponse(profile *models.UserProfile) *ProfileResponse {
	return &ProfileResponse{
		FullName:   profile.FullName,
		Points:     profile.Points,
		HelpsGiven: profile.HelpsGiven,
		LocalRank:  profile.LocalRank,
		Verified:   profile.Verified,
	}
}
