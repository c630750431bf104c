package websocket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testClient(userID uuid.UUID) *Client {
	return NewClient(userID, "Тестовый пользователь", nil, nil)
}

func TestPresenceRegisterDeregister(t *testing.T) {
	p := NewPresence()
	userID := uuid.New()
	client := testClient(userID)

	assert.False(t, p.IsOnline(userID))

	assert.True(t, p.Register(client), "первое соединение переводит пользователя в онлайн")
	assert.True(t, p.IsOnline(userID))

	assert.True(t, p.Deregister(client), "последнее соединение переводит пользователя в оффлайн")
	assert.False(t, p.IsOnline(userID))

	_, ok := p.LastSeen(userID)
	assert.True(t, ok, "после выхода из онлайна фиксируется last seen")
}

func TestPresenceMultipleConnections(t *testing.T) {
	p := NewPresence()
	userID := uuid.New()

	first := testClient(userID)
	second := testClient(userID)

	assert.True(t, p.Register(first))
	assert.False(t, p.Register(second), "второе соединение не меняет статус онлайна")

	assert.Len(t, p.ConnectionsOf(userID), 2)

	assert.False(t, p.Deregister(first), "пользователь ещё достижим через второе соединение")
	assert.True(t, p.IsOnline(userID))

	assert.True(t, p.Deregister(second))
	assert.False(t, p.IsOnline(userID))
}

func TestPresenceDeregisterIdempotent(t *testing.T) {
	p := NewPresence()
	client := testClient(uuid.New())

	p.Register(client)
	assert.True(t, p.Deregister(client))
	assert.False(t, p.Deregister(client), "повторное снятие регистрации — no-op")

	// Снятие незарегистрированного соединения безопасно
	assert.False(t, p.Deregister(testClient(uuid.New())))
}

func TestPresencePrunesOfflineUsers(t *testing.T) {
	p := NewPresence()
	userID := uuid.New()
	client := testClient(userID)

	p.Register(client)
	assert.True(t, p.Deregister(client))

	// Запись ушедшего пользователя не остаётся в реестре
	p.mu.RLock()
	assert.Empty(t, p.users)
	p.mu.RUnlock()

	// Отметка last seen переживает удаление записи
	_, ok := p.LastSeen(userID)
	assert.True(t, ok)

	// Повторное подключение проходит как обычный выход из оффлайна
	again := testClient(userID)
	assert.True(t, p.Register(again))
	assert.True(t, p.IsOnline(userID))
}

func TestPresenceOnlineCount(t *testing.T) {
	p := NewPresence()

	first := testClient(uuid.New())
	second := testClient(uuid.New())

	p.Register(first)
	p.Register(second)
	assert.Equal(t, 2, p.OnlineCount())

	p.Deregister(first)
	assert.Equal(t, 1, p.OnlineCount())
	assert.Len(t, p.AllClients(), 1)
}
