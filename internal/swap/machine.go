package swap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/events"
	"github.com/skillswap/skillswap-api/internal/models"
)

// EventSink принимает доменные события после фиксации перехода.
// Реализуется диспетчером доставки.
type EventSink interface {
	Dispatch(ctx context.Context, ev events.DomainEvent)
}

// successors задает граф допустимых переходов статуса.
// Статусы, отсутствующие в карте, — терминальные.
var successors = map[models.SwapStatus][]models.SwapStatus{
	models.SwapPending:  {models.SwapAccepted, models.SwapRejected, models.SwapCancelled},
	models.SwapAccepted: {models.SwapCompleted},
}

// Machine — машина состояний предложений обмена. Единственный санкционированный
// путь изменения статуса: CRUD-слой не пишет status напрямую.
//
// Гонки на одном предложении разрешает compare-and-swap в хранилище: переход
// фиксируется от статуса, который видел вызывающий, и проигравший получает
// ErrConflict. Мьютекс на каждый swap id упорядочивает фиксацию и публикацию,
// событие публикуется строго после записи нового статуса.
type Machine struct {
	store  Store
	skills SkillLookup
	sink   EventSink

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewMachine создает машину состояний поверх хранилища и приёмника событий
func NewMachine(store Store, skills SkillLookup, sink EventSink) *Machine {
	return &Machine{
		store:  store,
		skills: skills,
		sink:   sink,
	}
}

// CreateInput — данные для создания предложения обмена
type CreateInput struct {
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	OfferedSkillID uuid.UUID
	WantedSkillID  uuid.UUID
	Message        string
}

// Create создает предложение обмена в статусе pending и публикует событие
// swap_request получателю. Принадлежность навыков проверяется только здесь,
// при создании.
func (m *Machine) Create(ctx context.Context, input CreateInput) (*models.SwapRequest, error) {
	if input.FromUserID == input.ToUserID {
		return nil, ErrSelfSwap
	}

	// Предлагаемый навык должен принадлежать отправителю
	offeredOwner, err := m.skills.OwnerOf(ctx, input.OfferedSkillID)
	if err != nil {
		return nil, err
	}
	if offeredOwner != input.FromUserID {
		return nil, ErrSkillOwnership
	}

	// Желаемый навык должен принадлежать получателю
	wantedOwner, err := m.skills.OwnerOf(ctx, input.WantedSkillID)
	if err != nil {
		return nil, err
	}
	if wantedOwner != input.ToUserID {
		return nil, ErrSkillOwnership
	}

	// Не допускаем дубликаты в статусе pending
	exists, err := m.store.HasPendingDuplicate(ctx, input.FromUserID, input.ToUserID, input.OfferedSkillID, input.WantedSkillID)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существующих предложений: %w", err)
	}
	if exists {
		return nil, ErrDuplicate
	}

	now := time.Now()
	sr := &models.SwapRequest{
		ID:             uuid.New(),
		FromUserID:     input.FromUserID,
		ToUserID:       input.ToUserID,
		OfferedSkillID: input.OfferedSkillID,
		WantedSkillID:  input.WantedSkillID,
		Message:        input.Message,
		Status:         models.SwapPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.Create(ctx, sr); err != nil {
		return nil, fmt.Errorf("ошибка сохранения предложения обмена: %w", err)
	}

	m.emit(ctx, sr, events.KindSwapRequest, sr.ToUserID)
	return sr, nil
}

// Transition выполняет переход статуса от имени участника actorID.
// Правила применяются по порядку: существование, допустимость ребра,
// авторизация, фиксация, публикация события второй стороне.
//
// Ребро проверяется на статусе, прочитанном до взятия мьютекса: переход,
// недопустимый из этого статуса, получает ErrInvalidTransition, а допустимый,
// но проигравший гонку за фиксацию — ErrConflict от CAS.
func (m *Machine) Transition(ctx context.Context, swapID, actorID uuid.UUID, target models.SwapStatus) (*models.SwapRequest, error) {
	if !target.Valid() || target == models.SwapPending {
		return nil, ErrInvalidTransition
	}

	sr, err := m.store.Get(ctx, swapID)
	if err != nil {
		return nil, err
	}

	if !allowed(sr.Status, target) {
		return nil, ErrInvalidTransition
	}

	if err := authorize(sr, actorID, target); err != nil {
		return nil, err
	}

	lock := m.lockFor(swapID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	ok, err := m.store.UpdateStatus(ctx, swapID, sr.Status, target, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса предложения: %w", err)
	}
	if !ok {
		// Статус изменил конкурентный переход между чтением и фиксацией
		return nil, ErrConflict
	}

	sr.Status = target
	sr.UpdatedAt = now

	if target.IsTerminal() {
		// Мьютекс терминального предложения больше не понадобится
		m.locks.Delete(swapID)
	}

	// Уведомляется вторая сторона — та, что переход не инициировала
	m.emit(ctx, sr, events.KindForStatus(target), sr.OtherParty(actorID))
	return sr, nil
}

// lockFor возвращает мьютекс для данного предложения
func (m *Machine) lockFor(swapID uuid.UUID) *sync.Mutex {
	actual, _ := m.locks.LoadOrStore(swapID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// allowed проверяет ребро графа переходов
func allowed(current, target models.SwapStatus) bool {
	for _, next := range successors[current] {
		if next == target {
			return true
		}
	}
	return false
}

// authorize проверяет, что actorID вправе выполнить переход:
// принять/отклонить может только получатель, отменить — только отправитель,
// завершить — любая из сторон принятого обмена.
func authorize(sr *models.SwapRequest, actorID uuid.UUID, target models.SwapStatus) error {
	switch target {
	case models.SwapAccepted, models.SwapRejected:
		if sr.ToUserID != actorID {
			return ErrForbidden
		}
	case models.SwapCancelled:
		if sr.FromUserID != actorID {
			return ErrForbidden
		}
	case models.SwapCompleted:
		if !sr.Involves(actorID) {
			return ErrForbidden
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// emit публикует ровно одно доменное событие после фиксации изменения
func (m *Machine) emit(ctx context.Context, sr *models.SwapRequest, kind events.Kind, recipient uuid.UUID) {
	if m.sink == nil {
		return
	}

	title, message := eventText(kind)
	ev := events.New(kind, sr.ID, recipient, title, message, events.SwapPayload{
		SwapID:     sr.ID,
		Status:     sr.Status,
		FromUserID: sr.FromUserID,
		ToUserID:   sr.ToUserID,
		Message:    sr.Message,
	})
	m.sink.Dispatch(ctx, ev)
}

// eventText возвращает заголовок и текст уведомления для типа события
func eventText(kind events.Kind) (string, string) {
	switch kind {
	case events.KindSwapRequest:
		return "New Skill Swap Request", "You have a new skill swap request"
	case events.KindSwapAccepted:
		return "Skill Swap Accepted", "Your skill swap request was accepted"
	case events.KindSwapRejected:
		return "Skill Swap Rejected", "Your skill swap request was rejected"
	case events.KindSwapCancelled:
		return "Skill Swap Cancelled", "A skill swap request was cancelled"
	case events.KindSwapCompleted:
		return "Skill Swap Completed", "Your skill swap is now complete"
	default:
		return "Notification", ""
	}
}
