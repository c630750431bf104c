package rating

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/events"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/swap"
	"github.com/skillswap/skillswap-api/internal/utils"
)

// RatingService представляет сервис оценок завершённых обменов
type RatingService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	sink       swap.EventSink
}

// NewRatingService создает новый экземпляр RatingService.
// sink получает событие rating_received после сохранения оценки.
func NewRatingService(cfg *config.Config, sink swap.EventSink) *RatingService {
	return &RatingService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		sink:       sink,
	}
}

// RateSwap сохраняет оценку участника завершённого обмена
func (s *RatingService) RateSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	fromUserID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var payload struct {
		SwapID  string `json:"swap_id"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	swapID, err := uuid.Parse(payload.SwapID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	if payload.Rating < 1 || payload.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Оценка должна быть от 1 до 5"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Оценивать можно только завершённый обмен, в котором участвуешь
	var sr models.SwapRequest
	err = db.Pool.QueryRow(ctx, `
        SELECT id, from_user_id, to_user_id, status
        FROM swap_requests
        WHERE id = $1
    `, swapID).Scan(&sr.ID, &sr.FromUserID, &sr.ToUserID, &sr.Status)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Предложение обмена не найдено"})
		}
		log.Printf("Ошибка запроса предложения обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	if !sr.Involves(fromUserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Оценивать обмен могут только его участники"})
	}

	if sr.Status != models.SwapCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Оценить можно только завершённый обмен"})
	}

	toUserID := sr.OtherParty(fromUserID)

	// Одна оценка на участника за обмен
	var existingCount int
	err = db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM ratings WHERE swap_id = $1 AND from_user_id = $2
    `, swapID, fromUserID).Scan(&existingCount)

	if err != nil {
		log.Printf("Ошибка проверки существующих оценок: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	if existingCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Вы уже оценили этот обмен"})
	}

	ratingID := uuid.New()
	now := time.Now()

	_, err = db.Pool.Exec(ctx, `
        INSERT INTO ratings (id, swap_id, from_user_id, to_user_id, rating, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, ratingID, swapID, fromUserID, toUserID, payload.Rating, payload.Comment, now)

	if err != nil {
		log.Printf("Ошибка сохранения оценки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения оценки"})
	}

	// Событие публикуется после фиксации оценки
	if s.sink != nil {
		ev := events.New(events.KindRatingReceived, swapID, toUserID,
			"New Rating Received", "You received a new rating for a completed swap",
			events.RatingPayload{
				SwapID:     swapID,
				FromUserID: fromUserID,
				Rating:     payload.Rating,
				Comment:    payload.Comment,
			})
		s.sink.Dispatch(ctx, ev)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"rating_id": ratingID,
	})
}

// GetUserRatings возвращает оценки пользователя и агрегаты
func (s *RatingService) GetUserRatings(c fiber.Ctx) error {
	targetUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT r.id, r.swap_id, r.from_user_id, r.to_user_id, r.rating, COALESCE(r.comment, ''), r.created_at,
               u.name
        FROM ratings r
        JOIN users u ON r.from_user_id = u.id
        WHERE r.to_user_id = $1
        ORDER BY r.created_at DESC
    `, targetUUID)

	if err != nil {
		log.Printf("Ошибка запроса оценок: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения оценок"})
	}
	defer rows.Close()

	var ratings []models.Rating
	total := 0
	for rows.Next() {
		var rating models.Rating
		var fromName string
		if err := rows.Scan(
			&rating.ID,
			&rating.SwapID,
			&rating.FromUserID,
			&rating.ToUserID,
			&rating.Rating,
			&rating.Comment,
			&rating.CreatedAt,
			&fromName,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		rating.FromUser = &models.User{ID: rating.FromUserID, Name: fromName}
		ratings = append(ratings, rating)
		total += rating.Rating
	}

	average := 0.0
	if len(ratings) > 0 {
		average = float64(total) / float64(len(ratings))
	}

	return c.JSON(fiber.Map{
		"ratings": ratings,
		"count":   len(ratings),
		"average": average,
	})
}
