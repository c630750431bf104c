package swap

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
)

// ListFilter задает фильтрацию списка предложений пользователя
type ListFilter struct {
	Direction string            // all, incoming, outgoing
	Status    models.SwapStatus // пустое значение — без фильтра
}

// Store — долговременное хранилище предложений обмена.
// UpdateStatus выполняет переход по принципу compare-and-swap: запись
// меняется только если текущий статус равен ожидаемому, иначе возвращается
// false. Это защищает от гонок между процессами, внутрипроцессная
// блокировка машины состояний — лишь оптимизация поверх.
type Store interface {
	Create(ctx context.Context, sr *models.SwapRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.SwapRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next models.SwapStatus, updatedAt time.Time) (bool, error)
	HasPendingDuplicate(ctx context.Context, fromUserID, toUserID, offeredSkillID, wantedSkillID uuid.UUID) (bool, error)
	ListCounterparts(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// SkillLookup разрешает владельца навыка при создании предложения
type SkillLookup interface {
	// OwnerOf возвращает ID владельца навыка или ErrSkillNotFound
	OwnerOf(ctx context.Context, skillID uuid.UUID) (uuid.UUID, error)
}
