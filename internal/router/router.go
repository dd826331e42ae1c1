package router

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/handlers"
	"github.com/anonto42/nano-chat/backend/internal/middleware"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/anonto42/nano-chat/backend/internal/services"
	"github.com/anonto42/nano-chat/backend/pkg/config"
	"github.com/anonto42/nano-chat/backend/pkg/encryption"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const (
	groupMessagesCollection  = "group_messages"
	directMessagesCollection = "direct_messages"
)

// Deps are the connections and settings the routes are built from.
// FirebaseAuth is nil unless AUTH_PROVIDER=firebase.
type Deps struct {
	Config       *config.Config
	Postgres     *gorm.DB
	Mongo        *mongo.Database
	Cache        cache.Store
	FirebaseAuth *auth.Client
	Hub          *realtime.Hub
	Logger       *slog.Logger
}

// Migrate creates or updates the PostgreSQL tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.FollowRequest{},
		&models.Block{},
		&models.Server{},
		&models.Channel{},
		&models.Member{},
		&models.OneToOneConversation{},
		&models.Notification{},
	)
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) error {
	if err := Migrate(d.Postgres); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(d.Postgres)
	groupMessages := repositories.NewMongoMessageRepository(d.Mongo, groupMessagesCollection)
	directMessages := repositories.NewMongoMessageRepository(d.Mongo, directMessagesCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, repo := range []*repositories.MongoMessageRepository{groupMessages, directMessages} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create message indexes: %w", err)
		}
	}

	cipher, err := encryption.NewCipher(d.Config.MessageEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to set up message encryption: %w", err)
	}

	svc := services.New(services.Deps{
		Users:          userRepo,
		Graph:          repositories.NewPostgresGraphRepository(d.Postgres),
		Servers:        repositories.NewPostgresServerRepository(d.Postgres),
		Conversations:  repositories.NewPostgresConversationRepository(d.Postgres),
		GroupMessages:  groupMessages,
		DirectMessages: directMessages,
		Notifications:  repositories.NewPostgresNotificationRepository(d.Postgres),
		Cache:          services.NewCacheCoordinator(d.Cache, d.Config.CacheTTL, d.Logger),
		Bus:            d.Hub,
		Cipher:         cipher,
		Logger:         d.Logger,
	})

	var verifier middleware.IdentityVerifier
	if d.FirebaseAuth != nil {
		verifier = middleware.NewFirebaseVerifier(d.FirebaseAuth, svc.Users)
		log.Println("Using Firebase ID tokens for authentication; accounts are provisioned on first sign-in.")
	} else {
		verifier = middleware.NewJWTVerifier(d.Config.JWTSecret)
		log.Println("Using JWT bearer tokens for authentication.")
	}

	e.HTTPErrorHandler = handlers.ErrorHandler(d.Logger)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	handlers.NewRealtimeHandler(verifier, d.Hub, svc.Presence, d.Logger).RegisterRealtimeRoutes(e)
	log.Println("Realtime route configured.")

	// Firebase accounts are provisioned by the verifier instead.
	if d.FirebaseAuth == nil {
		handlers.NewUserHandler(svc.Users).RegisterAuthRoutes(e.Group("/api/v1/auth"))
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.Auth(verifier), middleware.SocketSession())

	handlers.NewUserHandler(svc.Users).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(svc.Graph).RegisterFollowRoutes(api)
	handlers.NewServerHandler(svc.Servers).RegisterServerRoutes(api)
	handlers.NewMessageHandler(svc.Messaging).RegisterMessageRoutes(api)
	handlers.NewNotificationHandler(svc.Notifications).RegisterNotificationRoutes(api)
	handlers.NewVideoCallHandler(d.Config.VideoSDKAPIKey, d.Config.VideoSDKSecret).RegisterVideoCallRoutes(api)

	log.Println("All routes configured.")
	return nil
}
