// Command mock-remote stands in for the remote inference and training-config
// services during local development.
package main

import (
	"flag"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/converter"
	"github.com/loiht2/ai-vision-portal/models"
)

var labels = []string{"cat", "dog", "bird", "car", "person"}

// mockServer keeps the last pushed training configuration in memory
type mockServer struct {
	mu       sync.Mutex
	config   models.TrainingConfigDocument
	training bool
	shape    string
}

func newMockServer(shape string) *mockServer {
	return &mockServer{
		config: models.TrainingConfigDocument{
			Epochs:       converter.DefaultEpochs,
			BatchSize:    converter.DefaultBatchSize,
			LearningRate: converter.DefaultLearningRate,
			ModelName:    converter.DefaultModelName,
			Classes:      converter.DefaultClasses,
			Augmentation: converter.DefaultAugmentation,
		},
		shape: shape,
	}
}

func (s *mockServer) routes(router *gin.Engine) {
	router.GET("/mock-config", s.getConfig)
	router.POST("/mock-update-config", s.updateConfig)
	router.POST("/mock-start-train", s.startTraining)
	router.POST("/mock-predict", s.predict)
}

func (s *mockServer) getConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.config)
}

func (s *mockServer) updateConfig(c *gin.Context) {
	var doc models.TrainingConfigDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	s.mu.Lock()
	s.config = doc
	s.mu.Unlock()

	log.Printf("Config updated: %+v", doc)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *mockServer) startTraining(c *gin.Context) {
	var doc models.TrainingConfigDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}
	if doc.Epochs <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "epochs must be positive"})
		return
	}

	s.mu.Lock()
	s.training = true
	s.mu.Unlock()

	log.Printf("Training accepted: %s for %d epochs", doc.ModelName, doc.Epochs)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// predict picks a stable label from the file content and answers in the configured shape
func (s *mockServer) predict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field 'file' is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	h := fnv.New32a()
	if _, err := io.Copy(h, f); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sum := h.Sum32()
	label := labels[sum%uint32(len(labels))]
	confidence := 0.5 + float64(sum%50)/100

	switch s.shape {
	case "label":
		c.JSON(http.StatusOK, gin.H{"label": label, "score": confidence})
	case "text":
		c.String(http.StatusOK, label)
	case "error":
		c.String(http.StatusInternalServerError, "model is not loaded")
	default:
		c.JSON(http.StatusOK, gin.H{
			"predictions": []gin.H{{"class_name": label, "confidence": confidence}},
		})
	}
}

func main() {
	port := flag.String("port", "8001", "Server port")
	shape := flag.String("shape", "list", "Prediction response shape: list, label, text or error")
	flag.Parse()

	router := gin.Default()
	newMockServer(*shape).routes(router)

	log.Printf("Mock remote services listening on port %s", *port)
	if err := router.Run(":" + *port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
