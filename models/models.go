package models

import "strings"

// TrainingConfigForm is the payload of POST /train/update/config
type TrainingConfigForm struct {
	Epochs       int    `form:"epochs" binding:"required"`
	BatchSize    int    `form:"batch_size" binding:"required"`
	LearningRate string `form:"learning_rate" binding:"required"`
	ModelName    string `form:"model_name" binding:"required"`
	Classes      int    `form:"classes" binding:"required"`
	Augmentation string `form:"augmentation"` // "true"/"false" from a dropdown, defaults to true
}

// IsAugmented converts the dropdown value to a boolean
func (f *TrainingConfigForm) IsAugmented() bool {
	if f.Augmentation == "" {
		return true
	}
	return strings.ToLower(f.Augmentation) == "true"
}

// CredentialsForm is the payload of the login and signup forms
type CredentialsForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// TrainingConfigDocument is the JSON document exchanged with the remote training-config service
type TrainingConfigDocument struct {
	Epochs       int    `json:"epochs"`
	BatchSize    int    `json:"batch_size"`
	LearningRate string `json:"learning_rate"`
	ModelName    string `json:"model_name"`
	Classes      int    `json:"classes"`
	Augmentation bool   `json:"augmentation"`
}

// StartTrainingResponse is returned by POST /train/start
type StartTrainingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
