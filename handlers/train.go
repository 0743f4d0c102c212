package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/middleware"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/reconciler"
)

// modelNames are suggested in the model field; any name is accepted
var modelNames = []string{"yolo12", "yolo11", "yolov8", "yolov5"}

// TrainView handles GET /train/get/config
func (h *Handler) TrainView(c *gin.Context) {
	current := h.trainer.Current(c.Request.Context())

	c.HTML(http.StatusOK, "train_view.html", page(c, "train", gin.H{
		"config":   current,
		"adjusted": c.Query("adjusted") == "true",
	}))
}

// TrainUpdatePage handles GET /train/update/config
func (h *Handler) TrainUpdatePage(c *gin.Context) {
	current := h.trainer.Current(c.Request.Context())

	c.HTML(http.StatusOK, "train_update.html", page(c, "train", gin.H{
		"form":        h.converter.ToForm(current),
		"model_names": modelNames,
	}))
}

// SaveTrainingConfig handles POST /train/update/config
func (h *Handler) SaveTrainingConfig(c *gin.Context) {
	var form models.TrainingConfigForm
	if err := c.ShouldBind(&form); err != nil {
		log.Printf("Invalid training config form: %v", err)
		c.HTML(http.StatusBadRequest, "train_update.html", page(c, "train", gin.H{
			"form":        &form,
			"model_names": modelNames,
			"error":       "All fields are required and epochs, batch size and classes must be numbers",
		}))
		return
	}

	job, err := h.trainer.Save(c.Request.Context(), &form)
	if err != nil {
		// the row is missing from history, the user flow continues
		log.Printf("Training config not stored: %v", err)
	} else if id, ok := middleware.GetIdentity(c); ok {
		log.Printf("User %s saved training config %d", id.Username, job.ID)
	}

	c.Redirect(http.StatusSeeOther, "/train/get/config?adjusted=true")
}

// StartTraining handles POST /train/start
func (h *Handler) StartTraining(c *gin.Context) {
	job, err := h.trainer.StartTraining(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, models.ErrNoConfiguration):
			status = http.StatusBadRequest
		case reconciler.IsRemoteFailure(err):
			status = http.StatusBadGateway
		}
		c.JSON(status, models.StartTrainingResponse{
			Status:  "error",
			Message: describeError(err),
		})
		return
	}

	c.JSON(http.StatusOK, models.StartTrainingResponse{
		Status:  "started",
		Message: fmt.Sprintf("Training started for %s (%d epochs), please wait", job.ModelName, job.Epochs),
	})
}
