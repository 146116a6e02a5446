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
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/mutual_aid_system/internal/models"
	"github.com/shenikar/mutual_aid_system/internal/service"
)

const (
	activeCacheKey = "emergencies:active"
	activeCacheTTL = 1 * time.Minute
)

const emergencyColumns = `
			id,
			category,
			description,
			latitude,
			longitude,
			requester_id,
			requester_name,
			status,
			helper_id,
			helper_name,
			created_at,
			resolved_at`

type EmergencyRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewEmergencyRepository(db *pgxpool.Pool, redisClient *redis.Client) service.EmergencyRepository {
	return &EmergencyRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись о заявке в бд
func (r *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	query := `
		INSERT INTO emergencies (category, description, latitude, longitude, requester_id, requester_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		emergency.Category,
		emergency.Description,
		emergency.Latitude,
		emergency.Longitude,
		emergency.RequesterID,
		emergency.RequesterName,
		emergency.Status,
	).Scan(&emergency.ID, &emergency.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create emergency: %w", err)
	}
	return nil
}

// GetByID возвращает заявку по её UUID
func (r *EmergencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE id = $1;
	`
	emergency := &models.Emergency{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&emergency.ID,
		&emergency.Category,
		&emergency.Description,
		&emergency.Latitude,
		&emergency.Longitude,
		&emergency.RequesterID,
		&emergency.RequesterName,
		&emergency.Status,
		&emergency.HelperID,
		&emergency.HelperName,
		&emergency.CreatedAt,
		&emergency.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrEmergencyNotFound
		}
		return nil, fmt.Errorf("failed to get emergency by id: %w", err)
	}
	return emergency, nil
}

// Accept - атомарный compare-and-set по полю status: заявка переходит в accepted
// и получает снимок помощника только если она всё ещё active. Окна между чтением
// и записью нет; при несовпадении условия возвращается nil, nil.
func (r *EmergencyRepository) Accept(ctx context.Context, id, helperID uuid.UUID, helperName string) (*models.Emergency, error) {
	query := `
		UPDATE emergencies SET
			status = 'accepted',
			helper_id = $2,
			helper_name = $3
		WHERE id = $1 AND status = 'active'
		RETURNING ` + emergencyColumns + `;
	`
	emergency := &models.Emergency{}
	err := r.db.QueryRow(ctx, query, id, helperID, helperName).Scan(
		&emergency.ID,
		&emergency.Category,
		&emergency.Description,
		&emergency.Latitude,
		&emergency.Longitude,
		&emergency.RequesterID,
		&emergency.RequesterName,
		&emergency.Status,
		&emergency.HelperID,
		&emergency.HelperName,
		&emergency.CreatedAt,
		&emergency.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Условие не совпало: заявка не существует либо уже не active
			return nil, nil
		}
		return nil, fmt.Errorf("failed to accept emergency: %w", err)
	}
	return emergency, nil
}

// Resolve переводит заявку в терминальный статус resolved.
// Условие status <> 'resolved' гарантирует, что переход сработает не более одного раза.
func (r *EmergencyRepository) Resolve(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE emergencies SET
			status = 'resolved',
			resolved_at = NOW()
		WHERE id = $1 AND status <> 'resolved';
	`
	cmdTag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve emergency: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// FindActive возвращает все активные заявки, новые первыми
func (r *EmergencyRepository) FindActive(ctx context.Context) ([]*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE status = 'active'
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find active emergencies: %w", err)
	}
	return collectEmergencies(rows, "FindActive")
}

// FindByRequester возвращает все заявки, созданные пользователем
func (r *EmergencyRepository) FindByRequester(ctx context.Context, userID uuid.UUID) ([]*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE requester_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find emergencies by requester: %w", err)
	}
	return collectEmergencies(rows, "FindByRequester")
}

// FindByHelper возвращает все заявки, где пользователь выступал помощником
func (r *EmergencyRepository) FindByHelper(ctx context.Context, userID uuid.UUID) ([]*models.Emergency, error) {
	query := `
		SELECT ` + emergencyColumns + `
		FROM emergencies
		WHERE helper_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find emergencies by helper: %w", err)
	}
	return collectEmergencies(rows, "FindByHelper")
}

func collectEmergencies(rows pgx.Rows, op string) ([]*models.Emergency, error) {
	defer rows.Close()

	emergencies := make([]*models.Emergency, 0)
	for rows.Next() {
		emergency := &models.Emergency{}
		err := rows.Scan(
			&emergency.ID,
			&emergency.Category,
			&emergency.Description,
			&emergency.Latitude,
			&emergency.Longitude,
			&emergency.RequesterID,
			&emergency.RequesterName,
			&emergency.Status,
			&emergency.HelperID,
			&emergency.HelperName,
			&emergency.CreatedAt,
			&emergency.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emergency row in %s: %w", op, err)
		}
		emergencies = append(emergencies, emergency)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in %s: %w", op, err)
	}
	return emergencies, nil
}

// GetActiveFromCache пытается получить список активных заявок из Redis
func (r *EmergencyRepository) GetActiveFromCache(ctx context.Context) ([]*models.Emergency, error) {
	val, err := r.redisClient.Get(ctx, activeCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active emergencies from cache: %w", err)
	}

	emergencies := make([]*models.Emergency, 0)
	if err := json.Unmarshal(val, &emergencies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active emergencies from cache: %w", err)
	}
	return emergencies, nil
}

// SetActiveCache сохраняет список активных заявок в Redis
func (r *EmergencyRepository) SetActiveCache(ctx context.Context, emergencies []*models.Emergency) error {
	val, err := json.Marshal(emergencies)
	if err != nil {
		return fmt.Errorf("failed to marshal active emergencies for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, activeCacheKey, val, activeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set active emergencies in cache: %w", err)
	}
	return nil
}

// InvalidateActiveCache удаляет список активных заявок из Redis кэша.
// Вызывается на каждом изменении жизненного цикла.
func (r *EmergencyRepository) InvalidateActiveCache(ctx context.Context) error {
	if err := r.redisClient.Del(ctx, activeCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate active emergencies cache: %w", err)
	}
	return nil
}
