package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/doctoronline/teleclinic-api/internal/config"
	"github.com/doctoronline/teleclinic-api/internal/database"
	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
	"github.com/doctoronline/teleclinic-api/internal/router"
	"github.com/doctoronline/teleclinic-api/internal/service"
	cloud "github.com/doctoronline/teleclinic-api/pkg/cloudinary"
	"github.com/doctoronline/teleclinic-api/pkg/localfs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Doctor{},
		&models.ChatRoom{},
		&models.ChatRoomParticipant{},
		&models.Message{},
		&models.UploadRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, continuing without cache and pub/sub")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, continuing without cross-node fan-out")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	var storage service.FileStorage
	uploadDir := ""
	switch cfg.StorageDriver {
	case "cloudinary":
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	default:
		local, err := localfs.New(cfg.UploadDir, logger)
		if err != nil {
			log.Fatalf("failed to prepare upload directory: %v", err)
		}
		storage = local
		uploadDir = local.Dir()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	roomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL, validate, logger)
	userService := service.NewUserService(userRepo, doctorRepo, validate, logger)
	doctorService := service.NewDoctorService(doctorRepo, userRepo, validate, logger)
	roomService := service.NewRoomService(roomRepo, userRepo, doctorRepo, validate, logger)
	chatService := service.NewChatService(roomRepo, messageRepo, redisClient, cfg.EventChannelBase, natsConn, validate, logger)
	uploadService := service.NewUploadService(storage, uploadRepo, cfg.UploadMaxSizeMB, logger)
	seedService := service.NewSeedService(userRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	doctorHandler := handler.NewDoctorHandler(doctorService, logger)
	chatHandler := handler.NewChatHandler(roomService, chatService, uploadService, logger)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:   authHandler,
		UserHandler:   userHandler,
		DoctorHandler: doctorHandler,
		ChatHandler:   chatHandler,
		SeedHandler:   seedHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		UploadDir:     uploadDir,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chatService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, timeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
