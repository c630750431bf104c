package swaps

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/models"
	"github.com/skillswap/skillswap-api/internal/swap"
	"github.com/skillswap/skillswap-api/internal/utils"
)

// SwapService представляет HTTP-сервис предложений обмена. Все изменения
// статуса проходят через машину состояний — сервис не пишет status напрямую.
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	machine    *swap.Machine
	store      swap.Store
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, machine *swap.Machine, store swap.Store) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		machine:    machine,
		store:      store,
	}
}

// CreateSwap создает новое предложение обмена навыками
func (s *SwapService) CreateSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	fromUserID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	var payload struct {
		ToUserID       string `json:"to_user_id"`
		OfferedSkillID string `json:"offered_skill_id"`
		WantedSkillID  string `json:"wanted_skill_id"`
		Message        string `json:"message"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	toUserID, err := uuid.Parse(payload.ToUserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID получателя"})
	}

	offeredSkillID, err := uuid.Parse(payload.OfferedSkillID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предлагаемого навыка"})
	}

	wantedSkillID, err := uuid.Parse(payload.WantedSkillID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID желаемого навыка"})
	}

	if len(payload.Message) > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Сообщение слишком длинное"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sr, err := s.machine.Create(ctx, swap.CreateInput{
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
		OfferedSkillID: offeredSkillID,
		WantedSkillID:  wantedSkillID,
		Message:        payload.Message,
	})

	if err != nil {
		return s.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"swap":    sr,
	})
}

// GetMySwaps возвращает список входящих и исходящих предложений обмена
func (s *SwapService) GetMySwaps(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	filter := swap.ListFilter{
		Direction: c.Query("type", "all"), // all, incoming, outgoing
	}

	if status := c.Query("status", ""); status != "" && status != "all" {
		swapStatus := models.SwapStatus(status)
		if !swapStatus.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус предложения обмена"})
		}
		filter.Status = swapStatus
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	swapList, err := s.store.ListForUser(ctx, userUUID, filter)
	if err != nil {
		log.Printf("Ошибка запроса предложений обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения предложений обмена"})
	}

	// Загружаем дополнительную информацию об участниках и навыках
	for i := range swapList {
		swapList[i].FromUser = getUserInfo(ctx, swapList[i].FromUserID)
		swapList[i].ToUser = getUserInfo(ctx, swapList[i].ToUserID)
		swapList[i].OfferedSkill = getSkillInfo(ctx, swapList[i].OfferedSkillID)
		swapList[i].WantedSkill = getSkillInfo(ctx, swapList[i].WantedSkillID)
	}

	return c.JSON(fiber.Map{
		"swaps": swapList,
		"count": len(swapList),
	})
}

// GetSwap возвращает предложение обмена по ID
func (s *SwapService) GetSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	swapID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sr, err := s.store.Get(ctx, swapID)
	if err != nil {
		return s.renderError(c, err)
	}

	// Предложение видят только его участники
	if !sr.Involves(userUUID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Предложение обмена не найдено"})
	}

	sr.FromUser = getUserInfo(ctx, sr.FromUserID)
	sr.ToUser = getUserInfo(ctx, sr.ToUserID)
	sr.OfferedSkill = getSkillInfo(ctx, sr.OfferedSkillID)
	sr.WantedSkill = getSkillInfo(ctx, sr.WantedSkillID)

	return c.JSON(fiber.Map{"swap": sr})
}

// UpdateSwapStatus обновляет статус предложения обмена через машину состояний
func (s *SwapService) UpdateSwapStatus(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	swapID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	var payload struct {
		Status string `json:"status"` // accepted, rejected, cancelled, completed
	}

	if err := c.Bind().Body(&payload); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	target := models.SwapStatus(payload.Status)
	if !target.Valid() || target == models.SwapPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус предложения обмена"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sr, err := s.machine.Transition(ctx, swapID, userUUID, target)
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"swap":    sr,
	})
}

// renderError преобразует доменную ошибку в HTTP-ответ
func (s *SwapService) renderError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, swap.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Предложение обмена не найдено"})
	case errors.Is(err, swap.ErrSkillNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Навык не найден"})
	case errors.Is(err, swap.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Недостаточно прав для изменения статуса предложения"})
	case errors.Is(err, swap.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый переход статуса предложения"})
	case errors.Is(err, swap.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Предложение обмена было изменено параллельным запросом"})
	case errors.Is(err, swap.ErrSelfSwap):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Вы не можете предложить обмен самому себе"})
	case errors.Is(err, swap.ErrSkillOwnership):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Навык не принадлежит участнику обмена"})
	case errors.Is(err, swap.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Такое предложение обмена уже существует"})
	default:
		log.Printf("Ошибка операции с предложением обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}
}

// getUserInfo получает информацию о пользователе
func getUserInfo(ctx context.Context, userID uuid.UUID) *models.User {
	var user models.User
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, COALESCE(location, ''), COALESCE(profile_photo, '')
        FROM users
        WHERE id = $1
    `, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Location,
		&user.ProfilePhoto,
	)

	if err != nil {
		log.Printf("Ошибка получения пользователя %s: %v", userID, err)
		return nil
	}

	return &user
}

// getSkillInfo получает информацию о навыке
func getSkillInfo(ctx context.Context, skillID uuid.UUID) *models.Skill {
	var skill models.Skill
	err := db.Pool.QueryRow(ctx, `
        SELECT id, user_id, name, COALESCE(description, ''), type, level
        FROM skills
        WHERE id = $1
    `, skillID).Scan(
		&skill.ID,
		&skill.UserID,
		&skill.Name,
		&skill.Description,
		&skill.Type,
		&skill.Level,
	)

	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("Ошибка получения навыка %s: %v", skillID, err)
		}
		return nil
	}

	return &skill
}
