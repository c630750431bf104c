package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"github.com/skillswap/skillswap-api/internal/events"
)

const (
	// Максимальное время ожидания для pong от клиента
	pongWait = 60 * time.Second

	// Отправлять ping-сообщения клиенту с этим интервалом
	pingPeriod = (pongWait * 9) / 10

	// Максимальное время ожидания записи кадра
	writeWait = 10 * time.Second

	// Максимальный размер сообщения от клиента
	maxMessageSize = 64 * 1024 // 64KB

	// Размер буфера для отправляемых сообщений
	sendBufferSize = 256
)

// Client представляет собой отдельное WebSocket соединение
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Name     string
	OpenedAt time.Time

	conn      *websocket.Conn
	send      chan []byte // Буферизованный канал исходящих сообщений
	manager   *Manager
	closeOnce sync.Once
	closeChan chan struct{}
}

// NewClient создает новый экземпляр Client
func NewClient(userID uuid.UUID, name string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		OpenedAt:  time.Now(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
	}
}

// Run регистрирует клиента и запускает циклы чтения и записи.
// Блокируется до закрытия соединения.
func (c *Client) Run() {
	c.manager.AddClient(c)

	go c.writePump()
	c.readPump()
}

// Close закрывает соединение. Повторные вызовы безопасны.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		c.manager.RemoveClient(c)
		c.Close()
	}()

	// Настраиваем соединение: дедлайн чтения продлевается каждым pong,
	// пропавший клиент отваливается по таймауту
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}

		c.manager.handleClientEvent(c, message)
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing message to client %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			// Отправляем ping для поддержания соединения
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// enqueue ставит кадр в очередь отправки, не блокируя вызывающего.
// Возвращает false, если соединение закрыто или клиент не успевает читать.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closeChan:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.closeChan:
		return false
	default:
		// Канал заполнен, клиент слишком медленный — закрываем соединение
		log.Printf("Send channel full for client %s, closing connection", c.ID)
		c.Close()
		return false
	}
}

// sendEnvelope сериализует и ставит в очередь кадр протокола
func (c *Client) sendEnvelope(event Event) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return false
	}

	return c.enqueue(data)
}

// sendError отправляет клиенту кадр с причиной отказа
func (c *Client) sendError(code, message string) {
	payload, _ := json.Marshal(map[string]string{
		"code":    code,
		"message": message,
	})

	c.sendEnvelope(Event{
		Type:    EventError,
		Payload: payload,
	})
}

// SendDomainEvent доставляет доменное событие на это соединение: снимок
// обмена для событий переходов плюс кадр уведомления. Мягкая отправка —
// отказ касается только этого соединения.
func (c *Client) SendDomainEvent(ev events.DomainEvent) bool {
	ok := true

	switch ev.Kind {
	case events.KindSwapRequest, events.KindSwapAccepted, events.KindSwapRejected,
		events.KindSwapCancelled, events.KindSwapCompleted:
		ok = c.sendEnvelope(Event{
			Type:      EventSwapUpdated,
			SwapID:    ev.SwapID.String(),
			Timestamp: ev.OccurredAt,
			Payload:   ev.Payload,
		})
	}

	notification, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling domain event %s: %v", ev.ID, err)
		return false
	}

	if !c.sendEnvelope(Event{
		Type:      EventNotificationNew,
		SwapID:    swapIDString(ev),
		Timestamp: ev.OccurredAt,
		Payload:   notification,
	}) {
		ok = false
	}

	return ok
}

func swapIDString(ev events.DomainEvent) string {
	if ev.SwapID == uuid.Nil {
		return ""
	}
	return ev.SwapID.String()
}
