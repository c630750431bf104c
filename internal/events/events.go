package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
)

// Kind определяет тип доменного события
type Kind string

const (
	KindSwapRequest    Kind = "swap_request"
	KindSwapAccepted   Kind = "swap_accepted"
	KindSwapRejected   Kind = "swap_rejected"
	KindSwapCancelled  Kind = "swap_cancelled"
	KindSwapCompleted  Kind = "swap_completed"
	KindRatingReceived Kind = "rating_received"
	KindSystemMessage  Kind = "system_message"
)

// DomainEvent представляет неизменяемый факт, порождённый успешным переходом
// статуса обмена или выставленной оценкой. Создаётся ровно один раз на переход,
// читается диспетчером доставки.
type DomainEvent struct {
	ID              uuid.UUID       `json:"id"`
	Kind            Kind            `json:"kind"`
	SwapID          uuid.UUID       `json:"swap_id,omitempty"`
	RecipientUserID uuid.UUID       `json:"recipient_user_id"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// New создает доменное событие с заполненными ID и временем
func New(kind Kind, swapID, recipient uuid.UUID, title, message string, payload any) DomainEvent {
	ev := DomainEvent{
		ID:              uuid.New(),
		Kind:            kind,
		SwapID:          swapID,
		RecipientUserID: recipient,
		Title:           title,
		Message:         message,
		OccurredAt:      time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Ошибка сериализации payload события %s: %v", kind, err)
		} else {
			ev.Payload = data
		}
	}

	return ev
}

// KindForStatus возвращает тип события, соответствующий новому статусу обмена
func KindForStatus(status models.SwapStatus) Kind {
	switch status {
	case models.SwapAccepted:
		return KindSwapAccepted
	case models.SwapRejected:
		return KindSwapRejected
	case models.SwapCancelled:
		return KindSwapCancelled
	case models.SwapCompleted:
		return KindSwapCompleted
	default:
		return KindSwapRequest
	}
}

// SwapPayload представляет снимок обмена, вкладываемый в событие
type SwapPayload struct {
	SwapID     uuid.UUID         `json:"swap_id"`
	Status     models.SwapStatus `json:"status"`
	FromUserID uuid.UUID         `json:"from_user_id"`
	ToUserID   uuid.UUID         `json:"to_user_id"`
	Message    string            `json:"message,omitempty"`
}

// RatingPayload представляет данные оценки, вкладываемые в событие
type RatingPayload struct {
	SwapID     uuid.UUID `json:"swap_id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
}
