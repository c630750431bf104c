package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/skillswap-api/internal/events"
)

// memNotifications — хранилище уведомлений в памяти для тестов
type memNotifications struct {
	mu      sync.Mutex
	saved   []events.DomainEvent
	read    []uuid.UUID
	saveErr error
}

func (s *memNotifications) Save(ctx context.Context, ev events.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, ev)
	return nil
}

func (s *memNotifications) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = append(s.read, notificationID)
	return nil
}

func (s *memNotifications) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// nextFrame снимает очередной кадр из очереди отправки клиента
func nextFrame(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	default:
		t.Fatal("ожидался кадр в очереди отправки, очередь пуста")
		return Event{}
	}
}

func assertNoFrames(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data := <-c.send:
		t.Fatalf("неожиданный кадр в очереди отправки: %s", data)
	default:
	}
}

// notificationID извлекает ID доменного события из кадра notification.new
func notificationID(t *testing.T, frame Event) uuid.UUID {
	t.Helper()

	require.Equal(t, EventNotificationNew, frame.Type)
	var ev events.DomainEvent
	require.NoError(t, json.Unmarshal(frame.Payload, &ev))
	return ev.ID
}

func newTestDispatcher(notifications NotificationStore) *Dispatcher {
	return NewDispatcher(NewPresence(), NewMailbox(), notifications)
}

func TestDispatchOfflineBuffers(t *testing.T) {
	notifs := &memNotifications{}
	d := newTestDispatcher(notifs)
	userID := uuid.New()

	d.Dispatch(context.Background(), systemEvent(userID, "пока оффлайн"))

	assert.Equal(t, 1, d.Mailbox().Len(userID))
	assert.Equal(t, 1, notifs.savedCount())
}

func TestDispatchOnlineFansOut(t *testing.T) {
	d := newTestDispatcher(&memNotifications{})
	userID := uuid.New()

	first := testClient(userID)
	second := testClient(userID)
	d.Attach(first)
	d.Attach(second)

	ev := systemEvent(userID, "живое событие")
	d.Dispatch(context.Background(), ev)

	// Каждое соединение получает свой кадр, ящик остаётся пустым
	assert.Equal(t, ev.ID, notificationID(t, nextFrame(t, first)))
	assert.Equal(t, ev.ID, notificationID(t, nextFrame(t, second)))
	assert.Equal(t, 0, d.Mailbox().Len(userID))
}

func TestDispatchSwapEventSendsSnapshot(t *testing.T) {
	d := newTestDispatcher(&memNotifications{})
	userID := uuid.New()

	client := testClient(userID)
	d.Attach(client)

	swapID := uuid.New()
	ev := events.New(events.KindSwapAccepted, swapID, userID, "Skill Swap Accepted", "", events.SwapPayload{SwapID: swapID})
	d.Dispatch(context.Background(), ev)

	// Для событий переходов сначала уходит снимок обмена, затем уведомление
	snapshot := nextFrame(t, client)
	assert.Equal(t, EventSwapUpdated, snapshot.Type)
	assert.Equal(t, swapID.String(), snapshot.SwapID)

	assert.Equal(t, ev.ID, notificationID(t, nextFrame(t, client)))
}

func TestAttachDrainsBufferedBeforeLive(t *testing.T) {
	d := newTestDispatcher(&memNotifications{})
	userID := uuid.New()

	buffered1 := systemEvent(userID, "первое в буфере")
	buffered2 := systemEvent(userID, "второе в буфере")
	d.Dispatch(context.Background(), buffered1)
	d.Dispatch(context.Background(), buffered2)

	client := testClient(userID)
	assert.True(t, d.Attach(client))

	live := systemEvent(userID, "живое")
	d.Dispatch(context.Background(), live)

	// Буфер уходит первым и в порядке поступления
	assert.Equal(t, buffered1.ID, notificationID(t, nextFrame(t, client)))
	assert.Equal(t, buffered2.ID, notificationID(t, nextFrame(t, client)))
	assert.Equal(t, live.ID, notificationID(t, nextFrame(t, client)))

	assert.Equal(t, 0, d.Mailbox().Len(userID))
}

func TestDispatchSaveFailureStillDelivers(t *testing.T) {
	notifs := &memNotifications{saveErr: errors.New("база недоступна")}
	d := newTestDispatcher(notifs)
	userID := uuid.New()

	client := testClient(userID)
	d.Attach(client)

	ev := systemEvent(userID, "доставка важнее записи")
	d.Dispatch(context.Background(), ev)

	assert.Equal(t, ev.ID, notificationID(t, nextFrame(t, client)))
}

func TestDetach(t *testing.T) {
	d := newTestDispatcher(nil)
	userID := uuid.New()

	first := testClient(userID)
	second := testClient(userID)
	d.Attach(first)
	d.Attach(second)

	assert.False(t, d.Detach(first))
	assert.True(t, d.Detach(second))

	// После ухода в оффлайн события снова копятся в ящике
	d.Dispatch(context.Background(), systemEvent(userID, "снова оффлайн"))
	assert.Equal(t, 1, d.Mailbox().Len(userID))
}

func TestDispatcherPrunesRecipientLocks(t *testing.T) {
	d := newTestDispatcher(&memNotifications{})
	userID := uuid.New()

	d.Dispatch(context.Background(), systemEvent(userID, "оффлайн"))

	// После доставки мьютекс получателя не задерживается в карте
	d.mu.Lock()
	assert.Empty(t, d.recipients)
	d.mu.Unlock()

	client := testClient(userID)
	d.Attach(client)
	d.Dispatch(context.Background(), systemEvent(userID, "онлайн"))
	d.Detach(client)

	d.mu.Lock()
	assert.Empty(t, d.recipients)
	d.mu.Unlock()
}

func TestClientCloseIdempotent(t *testing.T) {
	client := testClient(uuid.New())

	client.Close()
	client.Close()

	assert.False(t, client.enqueue([]byte("{}")), "закрытое соединение не принимает кадры")
}
