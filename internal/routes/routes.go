package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-backend/internal/config"
	"github.com/coachdesk/coachdesk-backend/internal/handlers"
	"github.com/coachdesk/coachdesk-backend/internal/middleware"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
	"github.com/coachdesk/coachdesk-backend/internal/services"
	chatws "github.com/coachdesk/coachdesk-backend/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger *zap.Logger) error {
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	chatHub := chatws.NewHub(logger)
	go chatHub.Run()

	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo)

	materializers := []services.Materializer{
		services.NewMessageMaterializer(clientRepo, conversationRepo, messageRepo, chatHub),
		services.NewTaskMaterializer(taskRepo),
		services.NewDocumentMaterializer(resourceRepo),
	}
	deliveryService := services.NewDeliveryService(enrollmentRepo, templateRepo, materializers, logger)
	enrollmentService := services.NewEnrollmentService(enrollmentRepo, templateRepo, deliveryService, logger)
	programService := services.NewProgramService(db, templateRepo, enrollmentRepo, clientRepo)
	taskService := services.NewTaskService(taskRepo, clientRepo)
	resourceService := services.NewResourceService(resourceRepo, clientRepo, storageService)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	clientHandler := handlers.NewClientHandler(userRepo, clientRepo)
	programHandler := handlers.NewProgramHandler(programService)
	enrollmentHandler := handlers.NewEnrollmentHandler(programService, enrollmentService)
	deliveryHandler := handlers.NewDeliveryHandler(deliveryService, cfg.CronSecret)
	taskHandler := handlers.NewTaskHandler(taskService)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)
	resourceHandler := handlers.NewResourceHandler(resourceService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// The scheduler hits this unauthenticated; the shared secret is the gate.
	api.Get("/cron/daily-program-delivery", deliveryHandler.RunDailyDelivery)

	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	clients := protected.Group("/clients")
	clients.Post("", clientHandler.AddClient)
	clients.Get("", clientHandler.ListClients)
	clients.Get("/:id/programs", enrollmentHandler.ListClientPrograms)

	templates := protected.Group("/templates")
	templates.Post("", programHandler.CreateTemplate)
	templates.Get("", programHandler.ListTemplates)
	templates.Get("/stats", programHandler.TemplateStats)
	templates.Get("/:id", programHandler.GetTemplate)
	templates.Put("/:id", programHandler.UpdateTemplate)
	templates.Delete("/:id", programHandler.DeleteTemplate)
	templates.Post("/:id/duplicate", programHandler.DuplicateTemplate)
	templates.Post("/:id/enroll", enrollmentHandler.EnrollClient)
	templates.Get("/:id/clients", enrollmentHandler.ListEnrolledClients)

	enrollments := protected.Group("/enrollments")
	enrollments.Post("/:id/start", enrollmentHandler.StartEnrollment)
	enrollments.Post("/:id/restart", enrollmentHandler.RestartEnrollment)
	enrollments.Put("/:id/status", enrollmentHandler.UpdateEnrollmentStatus)
	enrollments.Post("/:id/complete-element", enrollmentHandler.MarkElementComplete)

	tasks := protected.Group("/tasks")
	tasks.Post("", taskHandler.CreateTask)
	tasks.Get("", taskHandler.ListTasks)
	tasks.Put("/:id/status", taskHandler.UpdateTaskStatus)

	conversations := protected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)

	resources := protected.Group("/resources")
	resources.Post("", resourceHandler.CreateLinkResource)
	resources.Post("/upload", resourceHandler.UploadResource)
	resources.Get("", resourceHandler.ListResources)
	resources.Post("/:id/share", resourceHandler.ShareResource)
	resources.Get("/shared", resourceHandler.ListSharedWithMe)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	return registerDocsRoutes(app, cfg)
}
