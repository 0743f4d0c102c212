// Package reconciler decides which training configuration is current.
//
// A configuration fetched from the remote training-config service wins over
// the last locally stored one and is appended as a new "synced" row; local
// rows are never rewritten except for the status flip on start.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/converter"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/remote"
)

// Store is the persistence the reconciler needs
type Store interface {
	LatestTrainingJob(ctx context.Context) (*config.TrainingJob, error)
	CreateTrainingJob(ctx context.Context, job *config.TrainingJob) error
	UpdateTrainingJobStatus(ctx context.Context, id uint, status string) error
}

// Remote is the training-config service
type Remote interface {
	FetchTrainingConfig(ctx context.Context) (map[string]interface{}, error)
	PushTrainingConfig(ctx context.Context, doc *models.TrainingConfigDocument) (*remote.Response, error)
	StartTraining(ctx context.Context, doc *models.TrainingConfigDocument) (*remote.Response, error)
}

// Reconciler merges local and remote training configuration
type Reconciler struct {
	store     Store
	remote    Remote
	converter *converter.Converter
}

// New creates a new reconciler
func New(store Store, remote Remote) *Reconciler {
	return &Reconciler{
		store:     store,
		remote:    remote,
		converter: converter.NewConverter(),
	}
}

// Current returns the configuration to display, or nil when none exists anywhere.
// Remote failures are logged and fall back to the latest local row. A remote
// configuration is only appended when its parameters differ from that row.
func (r *Reconciler) Current(ctx context.Context) *config.TrainingJob {
	local, err := r.store.LatestTrainingJob(ctx)
	if err != nil {
		log.Printf("Failed to load latest training config: %v", err)
		local = nil
	}

	doc, err := r.remote.FetchTrainingConfig(ctx)
	if err != nil {
		log.Printf("Remote training config unavailable, using local copy: %v", err)
		return local
	}
	if !r.converter.HasEpochs(doc) {
		log.Printf("Remote training config has no epochs field, using local copy")
		return local
	}

	synced := r.converter.FromRemote(doc)
	if local != nil && sameSettings(local, synced) {
		return local
	}
	if err := r.store.CreateTrainingJob(ctx, synced); err != nil {
		log.Printf("%v", &models.PersistenceError{Op: "store synced training config", Err: err})
	} else {
		log.Printf("Synced training config from remote as job %d", synced.ID)
	}
	return synced
}

// sameSettings compares the training parameters of two jobs, ignoring id and status
func sameSettings(a, b *config.TrainingJob) bool {
	return a.Epochs == b.Epochs &&
		a.BatchSize == b.BatchSize &&
		a.LearningRate == b.LearningRate &&
		a.ModelName == b.ModelName &&
		a.Classes == b.Classes &&
		a.Augmentation == b.Augmentation
}

// Save stores the submitted form as a new configured row and pushes it to the
// update-config endpoint. Only the store write can fail the call; push
// failures are logged.
func (r *Reconciler) Save(ctx context.Context, form *models.TrainingConfigForm) (*config.TrainingJob, error) {
	job := r.converter.FromForm(form)
	var saveErr error
	if err := r.store.CreateTrainingJob(ctx, job); err != nil {
		saveErr = &models.PersistenceError{Op: "store training config", Err: err}
		log.Printf("%v", saveErr)
	}

	resp, err := r.remote.PushTrainingConfig(ctx, r.converter.ToDocument(job))
	if err != nil {
		log.Printf("Failed to sync training config with remote: %v", err)
	} else {
		log.Printf("Remote config sync answered %d: %s", resp.StatusCode,
			models.Excerpt(string(resp.Body), models.MaxExcerpt))
	}

	return job, saveErr
}

// StartTraining sends the latest configuration to the start-training endpoint
// and marks it as training when the remote accepts it.
func (r *Reconciler) StartTraining(ctx context.Context) (*config.TrainingJob, error) {
	job, err := r.store.LatestTrainingJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training config: %w", err)
	}
	if job == nil {
		return nil, models.ErrNoConfiguration
	}

	if _, err := r.remote.StartTraining(ctx, r.converter.ToDocument(job)); err != nil {
		log.Printf("Failed to start training for job %d: %v", job.ID, err)
		return job, err
	}

	job.Status = config.StatusTraining
	if err := r.store.UpdateTrainingJobStatus(ctx, job.ID, config.StatusTraining); err != nil {
		log.Printf("%v", &models.PersistenceError{Op: fmt.Sprintf("mark job %d as training", job.ID), Err: err})
	}
	log.Printf("Training started for job %d", job.ID)
	return job, nil
}

// IsRemoteFailure reports whether err came from the remote service rather than local state
func IsRemoteFailure(err error) bool {
	var terr *models.TransportError
	var serr *models.RemoteStatusError
	return errors.As(err, &terr) || errors.As(err, &serr)
}
