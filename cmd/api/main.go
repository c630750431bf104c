package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/skillswap/skillswap-api/internal/config"
	"github.com/skillswap/skillswap-api/internal/db"
	"github.com/skillswap/skillswap-api/internal/services/auth"
	"github.com/skillswap/skillswap-api/internal/services/cloudinary"
	"github.com/skillswap/skillswap-api/internal/services/notification"
	"github.com/skillswap/skillswap-api/internal/services/rating"
	"github.com/skillswap/skillswap-api/internal/services/skill"
	"github.com/skillswap/skillswap-api/internal/services/swaps"
	"github.com/skillswap/skillswap-api/internal/services/user"
	"github.com/skillswap/skillswap-api/internal/swap"
	"github.com/skillswap/skillswap-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "SkillSwap API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Подсистема доставки событий
	notifStore := notification.NewStore()
	presence := websocket.NewPresence()
	mailbox := websocket.NewMailbox()
	dispatcher := websocket.NewDispatcher(presence, mailbox, notifStore)

	// Машина состояний обменов публикует события через диспетчер
	swapStore := swap.NewPgxStore()
	machine := swap.NewMachine(swapStore, swap.NewPgxSkillLookup(), dispatcher)

	manager := websocket.NewManager(dispatcher, machine, swapStore, notifStore)
	defer manager.Shutdown()

	// Создаём сервисы
	authService := auth.NewAuthService(cfg)
	skillService := skill.NewSkillService(cfg)
	swapService := swaps.NewSwapService(cfg, machine, swapStore)
	ratingService := rating.NewRatingService(cfg, dispatcher)
	notificationService := notification.NewNotificationService(cfg, notifStore)
	userService := user.NewUserService(cfg)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg)

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	skillService.SetupRoutes(app)
	swapService.SetupRoutes(app)
	ratingService.SetupRoutes(app)
	notificationService.SetupRoutes(app)
	userService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)

	wsHandler := websocket.NewHandler(manager, authService.GetJWTService())
	wsHandler.SetupRoutes(app)

	// Корректно закрываем соединения при остановке
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Получен сигнал остановки, закрываем соединения...")
		manager.Shutdown()
		_ = app.Shutdown()
	}()

	// Запускаем сервер
	log.Printf("✅ SkillSwap API запущен на порту %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("❌ Ошибка запуска сервера: %v", err)
	}
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
