package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/swap"
)

// EventType определяет тип кадра протокола WebSocket
type EventType string

const (
	// Входящие от клиента
	EventSwapRequest          EventType = "swap.request"
	EventSwapAccept           EventType = "swap.accept"
	EventSwapReject           EventType = "swap.reject"
	EventSwapCancel           EventType = "swap.cancel"
	EventSwapComplete         EventType = "swap.complete"
	EventPresenceUpdate       EventType = "presence.update"
	EventTypingStart          EventType = "typing.start"
	EventTypingStop           EventType = "typing.stop"
	EventNotificationMarkRead EventType = "notification.markRead"

	// Исходящие к клиенту
	EventConnected        EventType = "connected"
	EventError            EventType = "error"
	EventSwapUpdated      EventType = "swap.updated"
	EventNotificationNew  EventType = "notification.new"
	EventNotificationRead EventType = "notification.marked_read"
	EventPresenceChanged  EventType = "presence.changed"
)

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type      EventType       `json:"type"`
	SwapID    string          `json:"swap_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Manager — центральный узел real-time подсистемы: владеет диспетчером
// доставки и маршрутизирует входящие кадры клиентов в машину состояний,
// ретрансляцию набора текста и обновления присутствия.
type Manager struct {
	dispatcher    *Dispatcher
	machine       *swap.Machine
	swaps         swap.Store
	notifications NotificationStore
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewManager создает новый экземпляр Manager
func NewManager(dispatcher *Dispatcher, machine *swap.Machine, swaps swap.Store, notifications NotificationStore) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dispatcher:    dispatcher,
		machine:       machine,
		swaps:         swaps,
		notifications: notifications,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Dispatcher возвращает диспетчер доставки
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Presence возвращает реестр присутствия
func (m *Manager) Presence() *Presence {
	return m.dispatcher.Presence()
}

// AddClient регистрирует нового клиента: приветственный кадр, затем слив
// буфера недоставленных уведомлений, затем живой трафик
func (m *Manager) AddClient(client *Client) {
	payload, _ := json.Marshal(map[string]string{
		"user_id": client.UserID.String(),
		"message": "Successfully connected to Skill Swap Platform",
	})
	client.sendEnvelope(Event{Type: EventConnected, UserID: client.UserID.String(), Payload: payload})

	cameOnline := m.dispatcher.Attach(client)

	log.Printf("WebSocket client %s connected for user %s", client.ID, client.UserID)

	if cameOnline {
		m.broadcastPresence(client.UserID, true, "")
	}
}

// RemoveClient снимает регистрацию клиента. Идемпотентен: повторное
// закрытие того же соединения не трогает состояние присутствия.
func (m *Manager) RemoveClient(client *Client) {
	wentOffline := m.dispatcher.Detach(client)

	log.Printf("WebSocket client %s disconnected for user %s", client.ID, client.UserID)

	if wentOffline {
		m.broadcastPresence(client.UserID, false, "")
	}
}

// Shutdown корректно завершает работу менеджера WebSocket
func (m *Manager) Shutdown() {
	m.cancel()

	for _, client := range m.Presence().AllClients() {
		client.Close()
	}
}

// handleClientEvent маршрутизирует входящий кадр клиента
func (m *Manager) handleClientEvent(client *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("Error unmarshaling event from client %s: %v", client.ID, err)
		client.sendError("bad_request", "невозможно разобрать сообщение")
		return
	}

	switch event.Type {
	case EventSwapRequest:
		m.handleSwapCreate(client, event)
	case EventSwapAccept:
		m.handleSwapTransition(client, event, models.SwapAccepted)
	case EventSwapReject:
		m.handleSwapTransition(client, event, models.SwapRejected)
	case EventSwapCancel:
		m.handleSwapTransition(client, event, models.SwapCancelled)
	case EventSwapComplete:
		m.handleSwapTransition(client, event, models.SwapCompleted)
	case EventTypingStart, EventTypingStop:
		m.relayTyping(client, event)
	case EventPresenceUpdate:
		m.handlePresenceUpdate(client, event)
	case EventNotificationMarkRead:
		m.handleMarkRead(client, event)
	default:
		log.Printf("Unhandled event type from client %s: %s", client.ID, event.Type)
	}
}

// handleSwapCreate создает предложение обмена от имени клиента
func (m *Manager) handleSwapCreate(client *Client, event Event) {
	var payload struct {
		ToUserID       string `json:"to_user_id"`
		OfferedSkillID string `json:"offered_skill_id"`
		WantedSkillID  string `json:"wanted_skill_id"`
		Message        string `json:"message"`
	}

	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		client.sendError("bad_request", "неверный формат данных предложения")
		return
	}

	toUserID, err := uuid.Parse(payload.ToUserID)
	if err != nil {
		client.sendError("bad_request", "неверный формат ID получателя")
		return
	}

	offeredSkillID, err := uuid.Parse(payload.OfferedSkillID)
	if err != nil {
		client.sendError("bad_request", "неверный формат ID предлагаемого навыка")
		return
	}

	wantedSkillID, err := uuid.Parse(payload.WantedSkillID)
	if err != nil {
		client.sendError("bad_request", "неверный формат ID желаемого навыка")
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()

	sr, err := m.machine.Create(ctx, swap.CreateInput{
		FromUserID:     client.UserID,
		ToUserID:       toUserID,
		OfferedSkillID: offeredSkillID,
		WantedSkillID:  wantedSkillID,
		Message:        payload.Message,
	})

	if err != nil {
		client.sendError(errorCode(err), err.Error())
		return
	}

	m.confirmSwap(client, sr)
}

// handleSwapTransition выполняет переход статуса от имени клиента.
// Вторая сторона уведомляется диспетчером, инициатор получает снимок
// синхронно.
func (m *Manager) handleSwapTransition(client *Client, event Event, target models.SwapStatus) {
	swapID, err := uuid.Parse(event.SwapID)
	if err != nil {
		client.sendError("bad_request", "неверный формат ID предложения обмена")
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()

	sr, err := m.machine.Transition(ctx, swapID, client.UserID, target)
	if err != nil {
		client.sendError(errorCode(err), err.Error())
		return
	}

	m.confirmSwap(client, sr)
}

// confirmSwap отправляет инициатору снимок обмена после успешной операции
func (m *Manager) confirmSwap(client *Client, sr *models.SwapRequest) {
	payload, err := json.Marshal(sr)
	if err != nil {
		log.Printf("Error marshaling swap %s: %v", sr.ID, err)
		return
	}

	client.sendEnvelope(Event{
		Type:    EventSwapUpdated,
		SwapID:  sr.ID.String(),
		Payload: payload,
	})
}

// relayTyping ретранслирует индикатор набора текста второй стороне обмена.
// Эфемерный кадр: в почтовый ящик не попадает.
func (m *Manager) relayTyping(client *Client, event Event) {
	swapID, err := uuid.Parse(event.SwapID)
	if err != nil {
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()

	sr, err := m.swaps.Get(ctx, swapID)
	if err != nil || !sr.Involves(client.UserID) {
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"user_name": client.Name,
	})

	m.pushToUser(sr.OtherParty(client.UserID), Event{
		Type:    event.Type,
		SwapID:  event.SwapID,
		UserID:  client.UserID.String(),
		Payload: payload,
	})
}

// handlePresenceUpdate рассылает явное обновление статуса присутствия
// участникам активных обменов клиента
func (m *Manager) handlePresenceUpdate(client *Client, event Event) {
	var payload struct {
		Status string `json:"status"` // online, away, busy
	}

	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Status == "" {
		return
	}

	m.broadcastPresence(client.UserID, true, payload.Status)
}

// handleMarkRead помечает уведомление прочитанным
func (m *Manager) handleMarkRead(client *Client, event Event) {
	var payload struct {
		NotificationID string `json:"notification_id"`
	}

	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		client.sendError("bad_request", "неверный формат данных уведомления")
		return
	}

	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		client.sendError("bad_request", "неверный формат ID уведомления")
		return
	}

	if m.notifications == nil {
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()

	if err := m.notifications.MarkRead(ctx, client.UserID, notificationID); err != nil {
		log.Printf("Failed to mark notification %s as read: %v", notificationID, err)
		client.sendError("internal", "не удалось отметить уведомление прочитанным")
		return
	}

	ack, _ := json.Marshal(map[string]interface{}{
		"notification_id": notificationID,
		"read_at":         time.Now(),
	})
	client.sendEnvelope(Event{Type: EventNotificationRead, Payload: ack})
}

// broadcastPresence уведомляет участников активных обменов пользователя
// об изменении его присутствия
func (m *Manager) broadcastPresence(userID uuid.UUID, online bool, status string) {
	ctx, cancel := m.opContext()
	defer cancel()

	counterparts, err := m.swaps.ListCounterparts(ctx, userID)
	if err != nil {
		log.Printf("Failed to resolve counterparts for user %s: %v", userID, err)
		return
	}

	body := map[string]interface{}{
		"user_id": userID,
		"online":  online,
	}
	if status != "" {
		body["status"] = status
	}
	payload, _ := json.Marshal(body)

	event := Event{
		Type:    EventPresenceChanged,
		UserID:  userID.String(),
		Payload: payload,
	}

	for _, other := range counterparts {
		m.pushToUser(other, event)
	}
}

// pushToUser отправляет кадр на все соединения пользователя
func (m *Manager) pushToUser(userID uuid.UUID, event Event) {
	for _, client := range m.Presence().ConnectionsOf(userID) {
		client.sendEnvelope(event)
	}
}

// opContext возвращает контекст с таймаутом для операций менеджера
func (m *Manager) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, 5*time.Second)
}

// errorCode преобразует доменную ошибку в короткий код для клиента
func errorCode(err error) string {
	switch {
	case errors.Is(err, swap.ErrNotFound), errors.Is(err, swap.ErrSkillNotFound):
		return "not_found"
	case errors.Is(err, swap.ErrForbidden):
		return "forbidden"
	case errors.Is(err, swap.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, swap.ErrConflict):
		return "conflict"
	case errors.Is(err, swap.ErrSelfSwap), errors.Is(err, swap.ErrSkillOwnership), errors.Is(err, swap.ErrDuplicate):
		return "bad_request"
	default:
		return "internal"
	}
}
