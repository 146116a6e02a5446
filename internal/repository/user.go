package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
)

const userColumns = `
			id,
			full_name,
			phone_number,
			email,
			password_hash,
			get_help,
			offer_help,
			points,
			helps_given,
			verified,
			settings,
			last_latitude,
			last_longitude,
			last_active,
			created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) service.UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create создает нового пользователя. Счётчики points и helps_given
// стартуют с нуля на уровне схемы.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal user settings: %w", err)
	}

	query := `
		INSERT INTO users (full_name, phone_number, email, password_hash, get_help, offer_help, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, points, helps_given, verified, created_at;
	`
	err = r.db.QueryRow(ctx, query,
		user.FullName,
		user.PhoneNumber,
		user.Email,
		user.PasswordHash,
		user.GetHelp,
		user.OfferHelp,
		settings,
	).Scan(&user.ID, &user.Points, &user.HelpsGiven, &user.Verified, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID возвращает пользователя по его UUID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// FindByLogin ищет пользователя по email или номеру телефона.
// Отсутствие пользователя - не ошибка: возвращается nil, nil.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone_number = $1 OR email = $1;
	`
	user, err := scanUser(r.db.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by login: %w", err)
	}
	return user, nil
}

// ExistsByPhoneOrEmail проверяет занятость номера телефона либо email
func (r *UserRepository) ExistsByPhoneOrEmail(ctx context.Context, phone string, email *string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE phone_number = $1 OR ($2::text IS NOT NULL AND email = $2)
		);
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, phone, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// IncrementRewards атомарно увеличивает счётчики вознаграждений пользователя
func (r *UserRepository) IncrementRewards(ctx context.Context, userID uuid.UUID, points, helps int) error {
	query := `
		UPDATE users SET
			points = points + $2,
			helps_given = helps_given + $3
		WHERE id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query, userID, points, helps)
	if err != nil {
		return fmt.Errorf("failed to increment user rewards: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s not found for reward", userID)
	}
	return nil
}

// CountActiveSince возвращает количество пользователей с отметкой активности после since
func (r *UserRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE last_active >= $1;
	`
	var count int
	if err := r.db.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

// UpdateLocation сохраняет последнюю позицию пользователя и отметку активности
func (r *UserRepository) UpdateLocation(ctx context.Context, userID uuid.UUID, lat, lon float64) error {
	query := `
		UPDATE users SET
			last_latitude = $2,
			last_longitude = $3,
			last_active = NOW()
		WHERE id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query, userID, lat, lon)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s not found for location update", userID)
	}
	return nil
}

// UpdateSettings сохраняет настройки пользователя
func (r *UserRepository) UpdateSettings(ctx context.Context, userID uuid.UUID, settings models.UserSettings) error {
	val, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal user settings: %w", err)
	}

	query := `
		UPDATE users SET
			settings = $2,
			get_help = $3,
			offer_help = $4
		WHERE id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query, userID, val, settings.GetHelp, settings.OfferHelp)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s not found for settings update", userID)
	}
	return nil
}

// ListIDsExcept возвращает идентификаторы всех пользователей, кроме указанного.
// Используется воркером веерной рассылки.
func (r *UserRepository) ListIDsExcept(ctx context.Context, exclude uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM users
		WHERE id <> $1;
	`
	rows, err := r.db.Query(ctx, query, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in ListIDsExcept: %w", err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var settingsRaw []byte
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.PhoneNumber,
		&user.Email,
		&user.PasswordHash,
		&user.GetHelp,
		&user.OfferHelp,
		&user.Points,
		&user.HelpsGiven,
		&user.Verified,
		&settingsRaw,
		&user.LastLatitude,
		&user.LastLongitude,
		&user.LastActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &user.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user settings: %w", err)
		}
	}
	return user, nil
}
