package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/converter"
	"github.com/loiht2/ai-vision-portal/middleware"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/remote"
	"github.com/loiht2/ai-vision-portal/security"
)

// Store is the persistence the page handlers read and write
type Store interface {
	CreateUser(ctx context.Context, user *config.User) error
	GetUserByUsername(ctx context.Context, username string) (*config.User, error)
	ListRecentTrainingJobs(ctx context.Context, limit int) ([]config.TrainingJob, error)
	CountTrainingJobs(ctx context.Context) (int64, error)
	CreatePrediction(ctx context.Context, p *config.Prediction) error
	GetPrediction(ctx context.Context, id uint) (*config.Prediction, error)
	ListRecentPredictions(ctx context.Context, limit int) ([]config.Prediction, error)
	CountPredictions(ctx context.Context) (int64, error)
}

// Predictor is the remote inference service
type Predictor interface {
	PostPrediction(ctx context.Context, filename, contentType string, content []byte) (*remote.Response, error)
}

// Trainer owns the training configuration workflow
type Trainer interface {
	Current(ctx context.Context) *config.TrainingJob
	Save(ctx context.Context, form *models.TrainingConfigForm) (*config.TrainingJob, error)
	StartTraining(ctx context.Context) (*config.TrainingJob, error)
}

// ImageStore archives uploaded images; it is optional
type ImageStore interface {
	ArchiveImage(ctx context.Context, filename, contentType string, content []byte) (string, error)
	OpenThumbnail(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handler handles HTTP requests
type Handler struct {
	store     Store
	predictor Predictor
	trainer   Trainer
	images    ImageStore
	issuer    *security.TokenIssuer
	converter *converter.Converter
}

// NewHandler creates a new handler instance. images may be nil.
func NewHandler(store Store, predictor Predictor, trainer Trainer, images ImageStore, issuer *security.TokenIssuer) *Handler {
	return &Handler{
		store:     store,
		predictor: predictor,
		trainer:   trainer,
		images:    images,
		issuer:    issuer,
		converter: converter.NewConverter(),
	}
}

// Routes registers every page and API route. The session middleware must already be installed.
func (h *Handler) Routes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/login") })

	router.GET("/login", h.LoginPage)
	router.POST("/auth/login", h.Login)
	router.GET("/logout", h.Logout)
	router.GET("/signup", h.SignupPage)
	router.POST("/auth/signup", h.Signup)

	pages := router.Group("/", middleware.RequireUser())
	{
		pages.GET("/dashboard", h.Dashboard)

		pages.GET("/train", func(c *gin.Context) { c.Redirect(http.StatusFound, "/train/get/config") })
		pages.GET("/train/get/config", h.TrainView)
		pages.GET("/train/update/config", h.TrainUpdatePage)
		pages.POST("/train/update/config", h.SaveTrainingConfig)

		pages.GET("/predict", h.PredictPage)
		pages.POST("/predict", h.Predict)
		pages.GET("/predictions/:id/image", h.PredictionImage)
	}

	router.POST("/train/start", middleware.RequireUserJSON(), h.StartTraining)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"images": h.images != nil,
	})
}

// page builds the template data shared by every authenticated page
func page(c *gin.Context, active string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["active_page"] = active
	if id, ok := middleware.GetIdentity(c); ok {
		data["user"] = true
		data["username"] = id.Username
	}
	return data
}
