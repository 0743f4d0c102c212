package converter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/models"
)

// Defaults applied to fields missing from a remote training configuration
const (
	DefaultEpochs       = 50
	DefaultBatchSize    = 32
	DefaultLearningRate = "0.0001"
	DefaultModelName    = "yolo12"
	DefaultClasses      = 1
	DefaultAugmentation = true
)

// Converter handles conversion between stored training jobs, forms and remote documents
type Converter struct{}

// NewConverter creates a new converter instance
func NewConverter() *Converter {
	return &Converter{}
}

// FromForm builds a configured TrainingJob from the update form
func (c *Converter) FromForm(form *models.TrainingConfigForm) *config.TrainingJob {
	return &config.TrainingJob{
		Status:       config.StatusConfigured,
		ModelName:    strings.ToLower(strings.TrimSpace(form.ModelName)),
		Epochs:       form.Epochs,
		BatchSize:    form.BatchSize,
		LearningRate: strings.TrimSpace(form.LearningRate),
		Classes:      form.Classes,
		Augmentation: form.IsAugmented(),
	}
}

// ToDocument converts a TrainingJob to the JSON document the remote services expect
func (c *Converter) ToDocument(job *config.TrainingJob) *models.TrainingConfigDocument {
	return &models.TrainingConfigDocument{
		Epochs:       job.Epochs,
		BatchSize:    job.BatchSize,
		LearningRate: job.LearningRate,
		ModelName:    job.ModelName,
		Classes:      job.Classes,
		Augmentation: job.Augmentation,
	}
}

// ToForm prefills the update form from a TrainingJob, or from the defaults when job is nil
func (c *Converter) ToForm(job *config.TrainingJob) *models.TrainingConfigForm {
	if job == nil {
		return &models.TrainingConfigForm{
			Epochs:       DefaultEpochs,
			BatchSize:    DefaultBatchSize,
			LearningRate: DefaultLearningRate,
			ModelName:    DefaultModelName,
			Classes:      DefaultClasses,
			Augmentation: strconv.FormatBool(DefaultAugmentation),
		}
	}
	return &models.TrainingConfigForm{
		Epochs:       job.Epochs,
		BatchSize:    job.BatchSize,
		LearningRate: job.LearningRate,
		ModelName:    job.ModelName,
		Classes:      job.Classes,
		Augmentation: strconv.FormatBool(job.Augmentation),
	}
}

// HasEpochs reports whether a fetched document is a training configuration at all
func (c *Converter) HasEpochs(doc map[string]interface{}) bool {
	_, ok := doc["epochs"]
	return ok
}

// FromRemote builds a synced TrainingJob from a fetched document, applying defaults
// for every missing or unusable field
func (c *Converter) FromRemote(doc map[string]interface{}) *config.TrainingJob {
	return &config.TrainingJob{
		Status:       config.StatusSynced,
		Epochs:       getInt(doc, "epochs", DefaultEpochs),
		BatchSize:    getInt(doc, "batch_size", DefaultBatchSize),
		LearningRate: getText(doc, "learning_rate", DefaultLearningRate),
		ModelName:    strings.ToLower(getText(doc, "model_name", DefaultModelName)),
		Classes:      getInt(doc, "classes", DefaultClasses),
		Augmentation: getBool(doc, "augmentation", DefaultAugmentation),
	}
}

// Helper functions
func getInt(m map[string]interface{}, key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		if f, err := val.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return def
}

func getText(m map[string]interface{}, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return def
		}
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	}
	return def
}

func getBool(m map[string]interface{}, key string, def bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f != 0
		}
	case float64:
		return val != 0
	}
	return def
}
