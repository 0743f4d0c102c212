package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// recentLimit is how many jobs and predictions the dashboard lists
const recentLimit = 5

// Dashboard handles GET /dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	totalTraining, err := h.store.CountTrainingJobs(ctx)
	if err != nil {
		log.Printf("Failed to count training jobs: %v", err)
	}
	totalPredictions, err := h.store.CountPredictions(ctx)
	if err != nil {
		log.Printf("Failed to count predictions: %v", err)
	}
	recentTraining, err := h.store.ListRecentTrainingJobs(ctx, recentLimit)
	if err != nil {
		log.Printf("Failed to list training jobs: %v", err)
	}
	recentPredictions, err := h.store.ListRecentPredictions(ctx, recentLimit)
	if err != nil {
		log.Printf("Failed to list predictions: %v", err)
	}

	c.HTML(http.StatusOK, "dashboard.html", page(c, "dashboard", gin.H{
		"total_training":     totalTraining,
		"total_predictions":  totalPredictions,
		"recent_training":    recentTraining,
		"recent_predictions": recentPredictions,
	}))
}
