package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/events"
)

// Store сохраняет уведомления в базе данных. Используется диспетчером
// доставки для долговременной записи и websocket-слоем для отметки
// прочитанности.
type Store struct{}

// NewStore создает хранилище уведомлений
func NewStore() *Store {
	return &Store{}
}

// Save записывает уведомление по доменному событию
func (s *Store) Save(ctx context.Context, ev events.DomainEvent) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, false, $7)
    `, ev.ID, ev.RecipientUserID, string(ev.Kind), ev.Title, ev.Message, ev.Payload, ev.OccurredAt)

	if err != nil {
		return fmt.Errorf("ошибка сохранения уведомления: %w", err)
	}
	return nil
}

// MarkRead помечает уведомление пользователя прочитанным
func (s *Store) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE notifications SET is_read = true
        WHERE id = $1 AND user_id = $2
    `, notificationID, userID)

	if err != nil {
		return fmt.Errorf("ошибка обновления уведомления: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("уведомление %s не найдено", notificationID)
	}
	return nil
}
