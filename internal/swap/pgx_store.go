package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/models"
)

// PgxStore реализует Store поверх PostgreSQL
type PgxStore struct{}

// NewPgxStore создает хранилище предложений обмена
func NewPgxStore() *PgxStore {
	return &PgxStore{}
}

var _ Store = (*PgxStore)(nil)

// Create вставляет новое предложение обмена
func (s *PgxStore) Create(ctx context.Context, sr *models.SwapRequest) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO swap_requests (id, from_user_id, to_user_id, offered_skill_id, wanted_skill_id, message, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, sr.ID, sr.FromUserID, sr.ToUserID, sr.OfferedSkillID, sr.WantedSkillID, sr.Message, sr.Status, sr.CreatedAt, sr.UpdatedAt)
	return err
}

// Get возвращает предложение обмена по ID
func (s *PgxStore) Get(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	var sr models.SwapRequest
	err := db.Pool.QueryRow(ctx, `
        SELECT id, from_user_id, to_user_id, offered_skill_id, wanted_skill_id, message, status, created_at, updated_at
        FROM swap_requests
        WHERE id = $1
    `, id).Scan(
		&sr.ID,
		&sr.FromUserID,
		&sr.ToUserID,
		&sr.OfferedSkillID,
		&sr.WantedSkillID,
		&sr.Message,
		&sr.Status,
		&sr.CreatedAt,
		&sr.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка запроса предложения обмена: %w", err)
	}

	return &sr, nil
}

// ListForUser возвращает предложения пользователя с фильтрацией по направлению и статусу
func (s *PgxStore) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.SwapRequest, error) {
	query := `
        SELECT id, from_user_id, to_user_id, offered_skill_id, wanted_skill_id, message, status, created_at, updated_at
        FROM swap_requests
    `
	args := []interface{}{userID}

	switch filter.Direction {
	case "incoming":
		query += " WHERE to_user_id = $1"
	case "outgoing":
		query += " WHERE from_user_id = $1"
	default:
		query += " WHERE (from_user_id = $1 OR to_user_id = $1)"
	}

	if filter.Status != "" {
		query += " AND status = $2"
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса предложений обмена: %w", err)
	}
	defer rows.Close()

	var swaps []models.SwapRequest
	for rows.Next() {
		var sr models.SwapRequest
		if err := rows.Scan(
			&sr.ID,
			&sr.FromUserID,
			&sr.ToUserID,
			&sr.OfferedSkillID,
			&sr.WantedSkillID,
			&sr.Message,
			&sr.Status,
			&sr.CreatedAt,
			&sr.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		swaps = append(swaps, sr)
	}

	return swaps, rows.Err()
}

// UpdateStatus переводит предложение в новый статус, только если текущий
// статус равен ожидаемому. Возвращает false, если строка не изменилась —
// переход проигран конкурентному запросу.
func (s *PgxStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next models.SwapStatus, updatedAt time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE swap_requests
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
    `, next, updatedAt, id, expected)

	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// HasPendingDuplicate проверяет наличие такого же предложения в ожидании
func (s *PgxStore) HasPendingDuplicate(ctx context.Context, fromUserID, toUserID, offeredSkillID, wantedSkillID uuid.UUID) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM swap_requests
        WHERE from_user_id = $1 AND to_user_id = $2
          AND offered_skill_id = $3 AND wanted_skill_id = $4
          AND status = 'pending'
    `, fromUserID, toUserID, offeredSkillID, wantedSkillID).Scan(&count)

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListCounterparts возвращает вторых участников активных обменов пользователя.
// Используется для адресной рассылки изменений присутствия.
func (s *PgxStore) ListCounterparts(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT DISTINCT CASE WHEN from_user_id = $1 THEN to_user_id ELSE from_user_id END
        FROM swap_requests
        WHERE (from_user_id = $1 OR to_user_id = $1)
          AND status IN ('pending', 'accepted')
    `, userID)

	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников обменов: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// PgxSkillLookup разрешает владельца навыка через таблицу skills
type PgxSkillLookup struct{}

// NewPgxSkillLookup создает поиск владельцев навыков
func NewPgxSkillLookup() *PgxSkillLookup {
	return &PgxSkillLookup{}
}

var _ SkillLookup = (*PgxSkillLookup)(nil)

// OwnerOf возвращает ID владельца навыка
func (l *PgxSkillLookup) OwnerOf(ctx context.Context, skillID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := db.Pool.QueryRow(ctx, `
        SELECT user_id FROM skills WHERE id = $1 AND is_active = true
    `, skillID).Scan(&ownerID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSkillNotFound
		}
		return uuid.Nil, fmt.Errorf("ошибка запроса навыка: %w", err)
	}

	return ownerID, nil
}
