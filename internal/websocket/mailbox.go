package websocket

import (
	"sync"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/events"
)

// MailboxCapacity — максимум недоставленных уведомлений на пользователя.
// При переполнении вытесняется самое старое.
const MailboxCapacity = 50

// Mailbox — буфер недоставленных уведомлений для пользователей без открытых
// соединений. Хранится только в памяти процесса: авторитетное состояние
// всегда восстановимо из хранилища обменов, почтовый ящик — слой удобства.
type Mailbox struct {
	mu    sync.Mutex
	boxes map[uuid.UUID]*mailboxEntry
}

type mailboxEntry struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

// NewMailbox создает пустой буфер уведомлений
func NewMailbox() *Mailbox {
	return &Mailbox{
		boxes: make(map[uuid.UUID]*mailboxEntry),
	}
}

func (mb *Mailbox) entryFor(userID uuid.UUID) *mailboxEntry {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	entry, ok := mb.boxes[userID]
	if !ok {
		entry = &mailboxEntry{}
		mb.boxes[userID] = entry
	}
	return entry
}

// Enqueue добавляет событие в ящик пользователя. Никогда не блокирует
// вызывающего; при переполнении отбрасывает самое старое событие.
func (mb *Mailbox) Enqueue(userID uuid.UUID, ev events.DomainEvent) {
	entry := mb.entryFor(userID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.events = append(entry.events, ev)
	if len(entry.events) > MailboxCapacity {
		entry.events = entry.events[len(entry.events)-MailboxCapacity:]
	}
}

// Drain атомарно забирает и возвращает все накопленные события в порядке
// поступления. Вызывается при подключении пользователя перед приёмом
// живого трафика.
func (mb *Mailbox) Drain(userID uuid.UUID) []events.DomainEvent {
	mb.mu.Lock()
	entry, ok := mb.boxes[userID]
	mb.mu.Unlock()

	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	drained := entry.events
	entry.events = nil
	return drained
}

// Len возвращает количество событий в ящике пользователя
func (mb *Mailbox) Len(userID uuid.UUID) int {
	mb.mu.Lock()
	entry, ok := mb.boxes[userID]
	mb.mu.Unlock()

	if !ok {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.events)
}
