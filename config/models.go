package config

import (
	"time"
)

// Training job statuses
const (
	StatusPending    = "pending"
	StatusConfigured = "configured"
	StatusSynced     = "synced"
	StatusTraining   = "training"
)

// User represents a portal account in the database
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"size:50;uniqueIndex"`
	HashedPassword string `gorm:"size:100"`
	IsActive       bool   `gorm:"default:true"`
	CreatedAt      time.Time
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// TrainingJob is one snapshot of the training configuration.
// Rows are append-only; the highest ID is the current configuration.
type TrainingJob struct {
	ID           uint   `gorm:"primaryKey"`
	Status       string `gorm:"size:20;default:pending;index"`
	ModelName    string `gorm:"size:50"`
	Epochs       int
	BatchSize    int
	LearningRate string `gorm:"size:20"` // kept as text, remote services send both "1e-4" and 0.0001
	Classes      int
	Augmentation bool
	CreatedAt    time.Time
}

// TableName overrides the table name
func (TrainingJob) TableName() string {
	return "training_jobs"
}

// Prediction is a stored inference result
type Prediction struct {
	ID             uint   `gorm:"primaryKey"`
	Filename       string `gorm:"size:255"`
	PredictionText string `gorm:"type:text"`
	Confidence     float64
	ImagePath      *string `gorm:"size:500"`
	CreatedAt      time.Time
}

// TableName overrides the table name
func (Prediction) TableName() string {
	return "predictions"
}
