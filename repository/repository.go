package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/loiht2/ai-vision-portal/config"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Repository handles database operations
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user record
func (r *Repository) CreateUser(ctx context.Context, user *config.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*config.User, error) {
	var user config.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateTrainingJob appends a training configuration snapshot
func (r *Repository) CreateTrainingJob(ctx context.Context, job *config.TrainingJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create training job: %w", err)
	}
	return nil
}

// LatestTrainingJob returns the most recent training job by id, or nil when there is none
func (r *Repository) LatestTrainingJob(ctx context.Context) (*config.TrainingJob, error) {
	var job config.TrainingJob
	err := r.db.WithContext(ctx).Order("id DESC").Limit(1).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateTrainingJobStatus updates the status of a training job
func (r *Repository) UpdateTrainingJobStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&config.TrainingJob{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecentTrainingJobs lists the newest training jobs first
func (r *Repository) ListRecentTrainingJobs(ctx context.Context, limit int) ([]config.TrainingJob, error) {
	var jobs []config.TrainingJob
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountTrainingJobs counts all stored training jobs
func (r *Repository) CountTrainingJobs(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&config.TrainingJob{}).Count(&n).Error
	return n, err
}

// CreatePrediction stores a normalized inference result
func (r *Repository) CreatePrediction(ctx context.Context, p *config.Prediction) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// GetPrediction retrieves a prediction by ID
func (r *Repository) GetPrediction(ctx context.Context, id uint) (*config.Prediction, error) {
	var p config.Prediction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListRecentPredictions lists the newest predictions first
func (r *Repository) ListRecentPredictions(ctx context.Context, limit int) ([]config.Prediction, error) {
	var predictions []config.Prediction
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&predictions).Error; err != nil {
		return nil, err
	}
	return predictions, nil
}

// CountPredictions counts all stored predictions
func (r *Repository) CountPredictions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&config.Prediction{}).Count(&n).Error
	return n, err
}
