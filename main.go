package main

import (
	"time"

	"kavaach/config"
	"kavaach/database"
	"kavaach/handlers"
	"kavaach/middleware"
	"kavaach/models"
	"kavaach/rabbitmq"
	"kavaach/utils/geocode"
	"kavaach/utils/vision"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Info("Initializing database schema and running migrations...")
	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Event publishing is optional. Without a broker the services run with a
	// nil publisher and skip events.
	var events database.EventPublisher
	if cfg.AmqpURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AmqpURL, cfg.EventsExchange)
		if err != nil {
			log.Errorf("RabbitMQ unavailable, continuing without events: %v", err)
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	users := database.NewUserService(db, cfg.JWTSecret)
	admins := database.NewAdminService(db, cfg.JWTSecret)
	reports := database.NewReportService(db, events)
	fleet := database.NewFleetService(db, reports, events)
	dashboard := database.NewDashboardService(db)

	var visionClient *vision.Client
	if cfg.VisionURL != "" {
		visionClient = vision.NewClient(cfg.VisionURL)
	}
	var geocoder *geocode.Client
	if cfg.GeocoderURL != "" {
		geocoder = geocode.NewClient(cfg.GeocoderURL)
	}

	h := handlers.NewHandlers(users, admins, reports, fleet, dashboard, visionClient, geocoder)
	router := setupRouter(h, users, admins, cfg)

	log.Infof("KAVAACH service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, users *database.UserService, admins *database.AdminService, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.SetTrustedProxies(cfg.TrustedProxies)
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.GET("/leaderboard", h.Leaderboard)
	}
	api.POST("/admin/login", h.AdminLogin)

	// Citizen routes
	citizen := api.Group("")
	citizen.Use(middleware.AuthMiddleware(users))
	{
		citizen.GET("/auth/me", h.Me)
		citizen.PUT("/auth/profile", h.UpdateProfile)
		citizen.POST("/submissions", h.CreateReport)
		citizen.GET("/submissions/my", h.MyReports)
	}

	// Admin routes
	admin := api.Group("")
	admin.Use(middleware.AdminMiddleware(admins))
	{
		admin.GET("/submissions/queue", h.ReportQueue)
		admin.GET("/submissions/:id", h.GetReport)
		admin.PUT("/submissions/:id/status", h.UpdateReportStatus)

		fleetWrite := middleware.RestrictTo(models.RoleSuperAdmin, models.RoleOpsAdmin, models.RoleFleetManager)
		admin.POST("/fleet", fleetWrite, h.CreateTruck)
		admin.GET("/fleet", h.ListTrucks)
		admin.GET("/fleet/:id", h.GetTruck)
		admin.PUT("/fleet/:id/status", fleetWrite, h.UpdateTruckStatus)
		admin.POST("/fleet/assign", fleetWrite, h.AssignTruck)

		admin.POST("/admin/create", middleware.RestrictTo(models.RoleSuperAdmin), h.CreateAdmin)
		admin.GET("/admin/dashboard/stats", h.DashboardStats)
		admin.GET("/admin/analytics", h.Analytics)
		admin.POST("/admin/map", h.LiveMap)
	}

	return router
}
