package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/normalizer"
)

// maxUpload bounds the size of an uploaded image
const maxUpload = 20 << 20

// PredictPage handles GET /predict
func (h *Handler) PredictPage(c *gin.Context) {
	c.HTML(http.StatusOK, "predict.html", page(c, "predict", nil))
}

// Predict handles POST /predict: forwards the upload to the inference service,
// normalizes the answer and records successful predictions
func (h *Handler) Predict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.HTML(http.StatusBadRequest, "predict.html", page(c, "predict", gin.H{"error": "Please choose an image to upload."}))
		return
	}
	content, err := readUpload(fileHeader)
	if err != nil {
		c.HTML(http.StatusBadRequest, "predict.html", page(c, "predict", gin.H{"error": "Could not read the uploaded file: " + err.Error()}))
		return
	}

	ctx := c.Request.Context()
	contentType := fileHeader.Header.Get("Content-Type")

	resp, err := h.predictor.PostPrediction(ctx, fileHeader.Filename, contentType, content)
	if err != nil {
		log.Printf("Prediction request for %s failed: %v", fileHeader.Filename, err)
		c.HTML(http.StatusOK, "predict.html", page(c, "predict", gin.H{"error": describeError(err)}))
		return
	}

	result := normalizer.Normalize(resp.StatusCode, resp.Body)
	if !result.OK {
		log.Printf("Prediction for %s not usable: %v", fileHeader.Filename, result.Err)
		c.HTML(http.StatusOK, "predict.html", page(c, "predict", gin.H{"error": result.ErrorMessage()}))
		return
	}

	prediction := &config.Prediction{
		Filename:       fileHeader.Filename,
		PredictionText: result.Label,
		Confidence:     result.Confidence,
	}
	if h.images != nil {
		key, err := h.images.ArchiveImage(ctx, fileHeader.Filename, contentType, content)
		if err != nil {
			log.Printf("Failed to archive %s: %v", fileHeader.Filename, err)
		} else {
			prediction.ImagePath = &key
		}
	}
	if err := h.store.CreatePrediction(ctx, prediction); err != nil {
		log.Printf("%v", &models.PersistenceError{Op: "store prediction for " + fileHeader.Filename, Err: err})
	} else {
		log.Printf("Stored prediction %d for %s", prediction.ID, fileHeader.Filename)
	}

	c.HTML(http.StatusOK, "predict.html", page(c, "predict", gin.H{
		"prediction": result.Label,
		"confidence": result.Confidence,
	}))
}

// PredictionImage handles GET /predictions/:id/image and streams the archived thumbnail
func (h *Handler) PredictionImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid prediction id"})
		return
	}
	if h.images == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image archive is not configured"})
		return
	}

	ctx := c.Request.Context()
	prediction, err := h.store.GetPrediction(ctx, uint(id))
	if err != nil || prediction.ImagePath == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	rc, err := h.images.OpenThumbnail(ctx, *prediction.ImagePath)
	if err != nil {
		log.Printf("Failed to open thumbnail for prediction %d: %v", id, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found", "details": err.Error()})
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	if fileHeader.Size > maxUpload {
		return nil, fmt.Errorf("image is larger than %d MB", maxUpload>>20)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return content, nil
}
