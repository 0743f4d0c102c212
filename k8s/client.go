package k8s

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Client handles Kubernetes operations
type Client struct {
	clientset kubernetes.Interface
}

// NewClient creates a new Kubernetes client
func NewClient(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// GetSecretData returns the data of a Secret, requiring the given keys to be non-empty
func (c *Client) GetSecretData(ctx context.Context, namespace, name string, required ...string) (map[string]string, error) {
	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}

	data := make(map[string]string, len(secret.Data)+len(secret.StringData))
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	for k, v := range secret.StringData {
		data[k] = v
	}

	for _, k := range required {
		if data[k] == "" {
			return nil, fmt.Errorf("secret %s/%s is missing required field %q", namespace, name, k)
		}
	}
	return data, nil
}
