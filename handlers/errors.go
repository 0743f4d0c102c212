package handlers

import (
	"errors"
	"fmt"

	"github.com/loiht2/ai-vision-portal/models"
)

// describeError turns an error kind into the message shown to the user
func describeError(err error) string {
	var (
		transportErr *models.TransportError
		statusErr    *models.RemoteStatusError
		normErr      *models.NormalizationError
	)
	switch {
	case errors.As(err, &transportErr):
		if transportErr.Timeout {
			return fmt.Sprintf("Error in connection: the request to %s timed out.", transportErr.Endpoint)
		}
		return fmt.Sprintf("Error in connection: unable to reach %s. Please ensure the service is running and reachable.", transportErr.Endpoint)
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.As(err, &normErr):
		return normErr.Error()
	case errors.Is(err, models.ErrNoConfiguration):
		return "No training configuration has been saved yet."
	}
	return fmt.Sprintf("Unexpected error: %v", err)
}
