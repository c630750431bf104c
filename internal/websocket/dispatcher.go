package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/events"
)

// NotificationStore сохраняет уведомления долговременно (флаги прочитанности).
// Запись — best effort: её отказ не откатывает уже зафиксированный переход.
type NotificationStore interface {
	Save(ctx context.Context, ev events.DomainEvent) error
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

// Dispatcher доставляет доменные события получателям: при наличии открытых
// соединений — мягкой рассылкой на каждое из них, иначе — в почтовый ящик.
//
// Доставка одному получателю сериализуется мьютексом на пользователя, поэтому
// события приходят в порядке фиксации породивших их переходов. Подключение
// нового соединения (Attach) берёт тот же мьютекс: накопленный буфер
// гарантированно уходит клиенту раньше любого живого события.
//
// Мьютексы получателей считают ссылки: запись удаляется из карты, как только
// не остаётся ни держателя, ни ожидающего.
type Dispatcher struct {
	presence      *Presence
	mailbox       *Mailbox
	notifications NotificationStore

	mu         sync.Mutex
	recipients map[uuid.UUID]*recipientLock
}

type recipientLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher создает диспетчер доставки поверх реестра присутствия и
// почтового ящика. notifications может быть nil.
func NewDispatcher(presence *Presence, mailbox *Mailbox, notifications NotificationStore) *Dispatcher {
	return &Dispatcher{
		presence:      presence,
		mailbox:       mailbox,
		notifications: notifications,
		recipients:    make(map[uuid.UUID]*recipientLock),
	}
}

// Presence возвращает реестр присутствия диспетчера
func (d *Dispatcher) Presence() *Presence {
	return d.presence
}

// Mailbox возвращает почтовый ящик диспетчера
func (d *Dispatcher) Mailbox() *Mailbox {
	return d.mailbox
}

// acquire берёт мьютекс получателя, учитывая ссылку на запись
func (d *Dispatcher) acquire(userID uuid.UUID) *recipientLock {
	d.mu.Lock()
	lock, ok := d.recipients[userID]
	if !ok {
		lock = &recipientLock{}
		d.recipients[userID] = lock
	}
	lock.refs++
	d.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release отпускает мьютекс получателя и удаляет запись без ссылок
func (d *Dispatcher) release(userID uuid.UUID, lock *recipientLock) {
	lock.mu.Unlock()

	d.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(d.recipients, userID)
	}
	d.mu.Unlock()
}

// Dispatch доставляет событие его получателю. Вызывается машиной состояний
// синхронно после фиксации перехода, поэтому порядок вызовов на одного
// получателя совпадает с порядком фиксации.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.DomainEvent) {
	lock := d.acquire(ev.RecipientUserID)
	defer d.release(ev.RecipientUserID, lock)

	// Долговременная запись уведомления до попытки доставки
	if d.notifications != nil {
		if err := d.notifications.Save(ctx, ev); err != nil {
			log.Printf("Failed to persist notification %s for user %s: %v", ev.ID, ev.RecipientUserID, err)
		}
	}

	d.deliver(ev)
}

// deliver выполняет рассылку без взятия мьютекса получателя
func (d *Dispatcher) deliver(ev events.DomainEvent) {
	if !d.presence.IsOnline(ev.RecipientUserID) {
		d.mailbox.Enqueue(ev.RecipientUserID, ev)
		return
	}

	// Рассылка на все соединения независимо: отказ одного соединения
	// не влияет на остальные и не считается ошибкой системы
	for _, client := range d.presence.ConnectionsOf(ev.RecipientUserID) {
		if !client.SendDomainEvent(ev) {
			log.Printf("Delivery degraded: dropped event %s for connection %s of user %s", ev.Kind, client.ID, ev.RecipientUserID)
		}
	}
}

// Attach регистрирует новое соединение и под мьютексом получателя сливает
// накопленный буфер в его канал отправки. Возвращает true, если пользователь
// перешёл в онлайн.
func (d *Dispatcher) Attach(client *Client) bool {
	lock := d.acquire(client.UserID)
	defer d.release(client.UserID, lock)

	cameOnline := d.presence.Register(client)

	for _, ev := range d.mailbox.Drain(client.UserID) {
		if !client.SendDomainEvent(ev) {
			log.Printf("Delivery degraded: dropped buffered event %s for connection %s of user %s", ev.Kind, client.ID, client.UserID)
		}
	}

	return cameOnline
}

// Detach снимает регистрацию соединения. Возвращает true, если это было
// последнее соединение пользователя.
func (d *Dispatcher) Detach(client *Client) bool {
	lock := d.acquire(client.UserID)
	defer d.release(client.UserID, lock)

	return d.presence.Deregister(client)
}
