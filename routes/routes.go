package routes

import (
	"log"

	"backend/config"
	"backend/controllers"
	"backend/middlewares"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	db := config.DB

	dedupSvc := services.NewDedupService(db)
	syncSvc := services.NewSyncService(db, dedupSvc)
	healthSvc := services.NewHealthDataService(db)
	ragSvc := services.NewRAGService(db)

	chatModel, err := services.NewChatModel()
	if err != nil {
		log.Fatalf("chat model init failed: %v", err)
	}
	chatSvc := services.NewChatService(db, chatModel, ragSvc)

	extractor, err := services.NewExtractionService()
	if err != nil {
		log.Fatalf("extraction service init failed: %v", err)
	}
	ingestSvc := services.NewIngestionService(db, utils.NewS3Store(), extractor)

	hub := services.NewRealtimeHub()
	services.InitAlertDeps(db, hub)

	userCtl := controllers.NewUserController(healthSvc)
	healthCtl := controllers.NewHealthDataController(healthSvc, dedupSvc)
	sourceCtl := controllers.NewSourceController(syncSvc)
	uploadCtl := controllers.NewUploadController(ingestSvc)
	chatCtl := controllers.NewChatController(chatSvc)
	realtimeCtl := controllers.NewRealtimeController(hub)

	r := gin.Default()
	r.Use(middlewares.CORSMiddleware())
	r.Use(middlewares.RateLimitMiddleware())

	v1 := r.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	// Everything else requires a token
	authed := v1.Group("")
	authed.Use(middlewares.AuthMiddleware())
	{
		user := authed.Group("/user")
		{
			user.GET("/profile", userCtl.GetProfile)
			user.PUT("/profile", userCtl.UpdateProfile)
			user.DELETE("/account", userCtl.DeleteAccount)
		}

		health := authed.Group("/health")
		{
			health.GET("/records", healthCtl.ListRecords)
			health.GET("/events", healthCtl.ListEvents)
			health.POST("/events", healthCtl.CreateEvent)
			health.GET("/snapshot", healthCtl.Snapshot)
			health.POST("/dedup", healthCtl.RunDedup)
		}

		sources := authed.Group("/sources")
		{
			sources.POST("/connect", sourceCtl.Connect)
			sources.GET("", sourceCtl.List)
			sources.DELETE("/:app", sourceCtl.Disconnect)
			sources.POST("/:app/sync", sourceCtl.Sync)
		}

		upload := authed.Group("/upload")
		{
			upload.POST("/file", uploadCtl.UploadFile)
			upload.GET("/files", uploadCtl.ListFiles)
		}

		chat := authed.Group("/chat")
		{
			chat.POST("/message", chatCtl.SendMessage)
			chat.GET("/conversations", chatCtl.ListConversations)
			chat.GET("/conversations/:id/messages", chatCtl.GetMessages)
			chat.PUT("/conversations/:id/title", chatCtl.UpdateTitle)
		}

		authed.GET("/ws/events", realtimeCtl.EventsWS)
	}

	return r
}
