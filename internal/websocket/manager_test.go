package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/skillswap-api/internal/events"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/swap"
)

// wsStore — хранилище обменов в памяти с CAS-семантикой UpdateStatus
type wsStore struct {
	mu    sync.Mutex
	swaps map[uuid.UUID]*models.SwapRequest
}

func newWSStore() *wsStore {
	return &wsStore{swaps: make(map[uuid.UUID]*models.SwapRequest)}
}

func (s *wsStore) Create(ctx context.Context, sr *models.SwapRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sr
	s.swaps[sr.ID] = &copied
	return nil
}

func (s *wsStore) Get(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.swaps[id]
	if !ok {
		return nil, swap.ErrNotFound
	}
	copied := *sr
	return &copied, nil
}

func (s *wsStore) ListForUser(ctx context.Context, userID uuid.UUID, filter swap.ListFilter) ([]models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.SwapRequest
	for _, sr := range s.swaps {
		if sr.Involves(userID) {
			out = append(out, *sr)
		}
	}
	return out, nil
}

func (s *wsStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next models.SwapStatus, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.swaps[id]
	if !ok || sr.Status != expected {
		return false, nil
	}
	sr.Status = next
	sr.UpdatedAt = updatedAt
	return true, nil
}

func (s *wsStore) HasPendingDuplicate(ctx context.Context, fromUserID, toUserID, offeredSkillID, wantedSkillID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sr := range s.swaps {
		if sr.Status == models.SwapPending &&
			sr.FromUserID == fromUserID && sr.ToUserID == toUserID &&
			sr.OfferedSkillID == offeredSkillID && sr.WantedSkillID == wantedSkillID {
			return true, nil
		}
	}
	return false, nil
}

func (s *wsStore) ListCounterparts(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, sr := range s.swaps {
		if !sr.Involves(userID) {
			continue
		}
		if sr.Status != models.SwapPending && sr.Status != models.SwapAccepted {
			continue
		}
		other := sr.OtherParty(userID)
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out, nil
}

type wsSkills map[uuid.UUID]uuid.UUID

func (s wsSkills) OwnerOf(ctx context.Context, skillID uuid.UUID) (uuid.UUID, error) {
	owner, ok := s[skillID]
	if !ok {
		return uuid.Nil, swap.ErrSkillNotFound
	}
	return owner, nil
}

type managerFixture struct {
	manager *Manager
	store   *wsStore
	notifs  *memNotifications

	alice, bob uuid.UUID
	aliceSkill uuid.UUID
	bobSkill   uuid.UUID
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	f := &managerFixture{
		store:      newWSStore(),
		notifs:     &memNotifications{},
		alice:      uuid.New(),
		bob:        uuid.New(),
		aliceSkill: uuid.New(),
		bobSkill:   uuid.New(),
	}

	skills := wsSkills{
		f.aliceSkill: f.alice,
		f.bobSkill:   f.bob,
	}

	dispatcher := NewDispatcher(NewPresence(), NewMailbox(), f.notifs)
	machine := swap.NewMachine(f.store, skills, dispatcher)
	f.manager = NewManager(dispatcher, machine, f.store, f.notifs)

	t.Cleanup(f.manager.Shutdown)
	return f
}

func (f *managerFixture) connect(t *testing.T, userID uuid.UUID, name string) *Client {
	t.Helper()

	client := NewClient(userID, name, nil, f.manager)
	f.manager.AddClient(client)

	frame := nextFrame(t, client)
	require.Equal(t, EventConnected, frame.Type)
	return client
}

func frameJSON(t *testing.T, event Event) []byte {
	t.Helper()

	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func payloadJSON(t *testing.T, body any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

// domainEventFrom декодирует доменное событие из кадра notification.new
func domainEventFrom(t *testing.T, frame Event) events.DomainEvent {
	t.Helper()

	require.Equal(t, EventNotificationNew, frame.Type)
	var ev events.DomainEvent
	require.NoError(t, json.Unmarshal(frame.Payload, &ev))
	return ev
}

func TestSwapLifecycleDelivery(t *testing.T) {
	f := newManagerFixture(t)

	clientA := f.connect(t, f.alice, "Alice")

	// Алиса создает предложение, пока Боб оффлайн
	f.manager.handleClientEvent(clientA, frameJSON(t, Event{
		Type: EventSwapRequest,
		Payload: payloadJSON(t, map[string]string{
			"to_user_id":       f.bob.String(),
			"offered_skill_id": f.aliceSkill.String(),
			"wanted_skill_id":  f.bobSkill.String(),
			"message":          "научу Go в обмен на дизайн",
		}),
	}))

	// Инициатор получает подтверждение со снимком обмена
	confirm := nextFrame(t, clientA)
	require.Equal(t, EventSwapUpdated, confirm.Type)
	swapID := confirm.SwapID
	require.NotEmpty(t, swapID)

	// Событие Боба легло в почтовый ящик
	assert.Equal(t, 1, f.manager.Dispatcher().Mailbox().Len(f.bob))

	// Боб подключается: сначала буфер, затем живой трафик
	clientB := f.connect(t, f.bob, "Bob")

	snapshot := nextFrame(t, clientB)
	assert.Equal(t, EventSwapUpdated, snapshot.Type)
	assert.Equal(t, swapID, snapshot.SwapID)

	buffered := domainEventFrom(t, nextFrame(t, clientB))
	assert.Equal(t, events.KindSwapRequest, buffered.Kind)
	assert.Equal(t, 0, f.manager.Dispatcher().Mailbox().Len(f.bob))

	// Алиса как участница активного обмена узнаёт, что Боб в сети
	presenceFrame := nextFrame(t, clientA)
	assert.Equal(t, EventPresenceChanged, presenceFrame.Type)
	assert.Equal(t, f.bob.String(), presenceFrame.UserID)

	// Боб принимает предложение
	f.manager.handleClientEvent(clientB, frameJSON(t, Event{
		Type:   EventSwapAccept,
		SwapID: swapID,
	}))

	accepted := nextFrame(t, clientA)
	assert.Equal(t, EventSwapUpdated, accepted.Type)
	assert.Equal(t, events.KindSwapAccepted, domainEventFrom(t, nextFrame(t, clientA)).Kind)

	confirmB := nextFrame(t, clientB)
	assert.Equal(t, EventSwapUpdated, confirmB.Type)

	// Алиса завершает обмен
	f.manager.handleClientEvent(clientA, frameJSON(t, Event{
		Type:   EventSwapComplete,
		SwapID: swapID,
	}))

	assert.Equal(t, EventSwapUpdated, nextFrame(t, clientB).Type)
	assert.Equal(t, events.KindSwapCompleted, domainEventFrom(t, nextFrame(t, clientB)).Kind)
	assert.Equal(t, EventSwapUpdated, nextFrame(t, clientA).Type)

	// Завершённый обмен менять нельзя
	f.manager.handleClientEvent(clientB, frameJSON(t, Event{
		Type:   EventSwapAccept,
		SwapID: swapID,
	}))

	errFrame := nextFrame(t, clientB)
	require.Equal(t, EventError, errFrame.Type)

	var errBody struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(errFrame.Payload, &errBody))
	assert.Equal(t, "invalid_transition", errBody.Code)

	// Каждый переход записан долговременно
	assert.Equal(t, 3, f.notifs.savedCount())
}

func TestDisconnectBroadcastsPresence(t *testing.T) {
	f := newManagerFixture(t)

	clientA := f.connect(t, f.alice, "Alice")
	clientB := f.connect(t, f.bob, "Bob")

	// Активный обмен связывает Алису и Боба
	f.manager.handleClientEvent(clientA, frameJSON(t, Event{
		Type: EventSwapRequest,
		Payload: payloadJSON(t, map[string]string{
			"to_user_id":       f.bob.String(),
			"offered_skill_id": f.aliceSkill.String(),
			"wanted_skill_id":  f.bobSkill.String(),
		}),
	}))
	nextFrame(t, clientA) // подтверждение
	nextFrame(t, clientB) // снимок обмена
	nextFrame(t, clientB) // уведомление

	f.manager.RemoveClient(clientB)

	frame := nextFrame(t, clientA)
	require.Equal(t, EventPresenceChanged, frame.Type)

	var body struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &body))
	assert.False(t, body.Online)

	// Повторное снятие того же соединения не рассылает дубликат
	f.manager.RemoveClient(clientB)
	assertNoFrames(t, clientA)
}

func TestTypingRelay(t *testing.T) {
	f := newManagerFixture(t)

	clientA := f.connect(t, f.alice, "Alice")
	clientB := f.connect(t, f.bob, "Bob")

	f.manager.handleClientEvent(clientA, frameJSON(t, Event{
		Type: EventSwapRequest,
		Payload: payloadJSON(t, map[string]string{
			"to_user_id":       f.bob.String(),
			"offered_skill_id": f.aliceSkill.String(),
			"wanted_skill_id":  f.bobSkill.String(),
		}),
	}))
	confirm := nextFrame(t, clientA)
	swapID := confirm.SwapID
	nextFrame(t, clientB)
	nextFrame(t, clientB)

	f.manager.handleClientEvent(clientA, frameJSON(t, Event{
		Type:   EventTypingStart,
		SwapID: swapID,
	}))

	frame := nextFrame(t, clientB)
	require.Equal(t, EventTypingStart, frame.Type)
	assert.Equal(t, f.alice.String(), frame.UserID)

	var body struct {
		UserName string `json:"user_name"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &body))
	assert.Equal(t, "Alice", body.UserName)

	// Посторонний участник индикатор не ретранслирует
	stranger := f.connect(t, uuid.New(), "Eve")
	f.manager.handleClientEvent(stranger, frameJSON(t, Event{
		Type:   EventTypingStart,
		SwapID: swapID,
	}))
	assertNoFrames(t, clientA)
	assertNoFrames(t, clientB)
}

func TestMarkReadAck(t *testing.T) {
	f := newManagerFixture(t)

	client := f.connect(t, f.alice, "Alice")
	notificationID := uuid.New()

	f.manager.handleClientEvent(client, frameJSON(t, Event{
		Type: EventNotificationMarkRead,
		Payload: payloadJSON(t, map[string]string{
			"notification_id": notificationID.String(),
		}),
	}))

	frame := nextFrame(t, client)
	assert.Equal(t, EventNotificationRead, frame.Type)

	f.notifs.mu.Lock()
	defer f.notifs.mu.Unlock()
	require.Len(t, f.notifs.read, 1)
	assert.Equal(t, notificationID, f.notifs.read[0])
}

func TestMalformedFrame(t *testing.T) {
	f := newManagerFixture(t)

	client := f.connect(t, f.alice, "Alice")
	f.manager.handleClientEvent(client, []byte("не json"))

	frame := nextFrame(t, client)
	require.Equal(t, EventError, frame.Type)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &body))
	assert.Equal(t, "bad_request", body.Code)
}

func TestSwapCreateForbiddenSkill(t *testing.T) {
	f := newManagerFixture(t)

	client := f.connect(t, f.alice, "Alice")

	// Предлагает чужой навык
	f.manager.handleClientEvent(client, frameJSON(t, Event{
		Type: EventSwapRequest,
		Payload: payloadJSON(t, map[string]string{
			"to_user_id":       f.bob.String(),
			"offered_skill_id": f.bobSkill.String(),
			"wanted_skill_id":  f.bobSkill.String(),
		}),
	}))

	frame := nextFrame(t, client)
	require.Equal(t, EventError, frame.Type)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &body))
	assert.Equal(t, "bad_request", body.Code)
}
