package service

import "errors"

// Доменные ошибки сервисного слоя. Хендлер отображает их в HTTP-статусы через errors.Is.
var (
	// ErrEmergencyConflict - условное обновление не совпало: заявка уже принята,
	// уже разрешена или не существует. Для принятия эти случаи намеренно не различаются.
	ErrEmergencyConflict = errors.New("emergency not found or already accepted")

	ErrEmergencyNotFound = errors.New("emergency not found")

	// ErrNotRequester - завершить заявку может только её автор
	ErrNotRequester = errors.New("only the requester may complete this emergency")

	ErrUserExists         = errors.New("user with this phone number or email already exists")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrUserNotFound       = errors.New("user not found")
)
