package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Presence — реестр открытых соединений по пользователям. Единственный
// источник истины о том, достижим ли пользователь прямо сейчас.
//
// Структура карты защищена общим мьютексом, но набор соединений каждого
// пользователя мутирует под собственным мьютексом записи, чтобы гонка
// connect/disconnect одного пользователя не сериализовала остальных.
// Запись пользователя живёт, пока открыто хотя бы одно его соединение;
// с уходом в оффлайн она удаляется, остаётся только отметка last seen.
type Presence struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*presenceEntry
	lastSeen map[uuid.UUID]time.Time
}

type presenceEntry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Client

	// removed выставляется при удалении записи из карты: регистрация в
	// устаревшую запись повторяется заново
	removed bool
}

// NewPresence создает пустой реестр присутствия
func NewPresence() *Presence {
	return &Presence{
		users:    make(map[uuid.UUID]*presenceEntry),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

// entryFor возвращает запись пользователя, создавая её при необходимости
func (p *Presence) entryFor(userID uuid.UUID) *presenceEntry {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()

	if ok {
		return entry
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok = p.users[userID]; !ok {
		entry = &presenceEntry{conns: make(map[uuid.UUID]*Client)}
		p.users[userID] = entry
	}
	return entry
}

// Register добавляет соединение пользователя.
// Возвращает true, если пользователь перешёл из оффлайна в онлайн.
func (p *Presence) Register(client *Client) bool {
	for {
		entry := p.entryFor(client.UserID)

		entry.mu.Lock()
		if entry.removed {
			entry.mu.Unlock()
			continue
		}

		wasOffline := len(entry.conns) == 0
		entry.conns[client.ID] = client
		entry.mu.Unlock()
		return wasOffline
	}
}

// Deregister удаляет соединение пользователя. Повторный вызов для того же
// соединения безопасен. Возвращает true, если это было последнее соединение
// и пользователь ушёл в оффлайн.
func (p *Presence) Deregister(client *Client) bool {
	p.mu.RLock()
	entry, ok := p.users[client.UserID]
	p.mu.RUnlock()

	if !ok {
		return false
	}

	entry.mu.Lock()
	if _, registered := entry.conns[client.ID]; !registered {
		entry.mu.Unlock()
		return false
	}

	delete(entry.conns, client.ID)
	empty := len(entry.conns) == 0
	entry.mu.Unlock()

	if !empty {
		return false
	}

	// Пустая запись удаляется из карты. Перепроверка под обоими мьютексами:
	// между разблокировками могло успеть открыться новое соединение.
	p.mu.Lock()
	defer p.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if len(entry.conns) > 0 || entry.removed {
		return false
	}

	entry.removed = true
	delete(p.users, client.UserID)
	p.lastSeen[client.UserID] = time.Now()
	return true
}

// IsOnline сообщает, есть ли у пользователя хотя бы одно открытое соединение
func (p *Presence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()

	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.conns) > 0
}

// ConnectionsOf возвращает снимок открытых соединений пользователя
func (p *Presence) ConnectionsOf(userID uuid.UUID) []*Client {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()

	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	clients := make([]*Client, 0, len(entry.conns))
	for _, c := range entry.conns {
		clients = append(clients, c)
	}
	return clients
}

// LastSeen возвращает время последнего выхода пользователя из онлайна
func (p *Presence) LastSeen(userID uuid.UUID) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ts, ok := p.lastSeen[userID]
	return ts, ok
}

// OnlineCount возвращает количество пользователей в онлайне
func (p *Presence) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, entry := range p.users {
		entry.mu.Lock()
		if len(entry.conns) > 0 {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}

// AllClients возвращает снимок всех открытых соединений
func (p *Presence) AllClients() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var clients []*Client
	for _, entry := range p.users {
		entry.mu.Lock()
		for _, c := range entry.conns {
			clients = append(clients, c)
		}
		entry.mu.Unlock()
	}
	return clients
}
