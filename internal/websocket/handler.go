package websocket

import (
	"log"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/skillswap/skillswap-api/internal/utils"
)

// upgrader выполняет WebSocket-рукопожатие поверх fasthttp.
// Ограниченное окно рукопожатия: не уложился — соединение сброшено.
var upgrader = websocket.FastHTTPUpgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true
	},
}

// Handler обслуживает точку входа real-time соединений
type Handler struct {
	manager    *Manager
	jwtService *utils.JWTService
}

// NewHandler создает обработчик WebSocket-подключений
func NewHandler(manager *Manager, jwtService *utils.JWTService) *Handler {
	return &Handler{
		manager:    manager,
		jwtService: jwtService,
	}
}

// SetupRoutes настраивает маршрут WebSocket
func (h *Handler) SetupRoutes(app *fiber.App) {
	app.Get("/ws", h.Serve)
}

// Serve проверяет учётные данные и поднимает соединение. Невалидный или
// просроченный токен отклоняется до любого изменения состояния присутствия.
func (h *Handler) Serve(c fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		// Запасной вариант: Bearer-заголовок
		authHeader := c.Get("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}

	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication token required"})
	}

	claims, err := h.jwtService.ParseClaims(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	err = upgrader.Upgrade(c.RequestCtx(), func(conn *websocket.Conn) {
		client := NewClient(userID, claims.Name, conn, h.manager)
		client.Run()
	})

	if err != nil {
		log.Printf("WebSocket upgrade failed for user %s: %v", userID, err)
		return fiber.ErrUpgradeRequired
	}

	return nil
}
