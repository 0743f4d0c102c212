package k8s

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestGetSecretData(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "minio-secret", Namespace: "vision"},
		Data: map[string][]byte{
			"endpoint":  []byte("minio.minio.svc.cluster.local:9000"),
			"accesskey": []byte("portal"),
			"secretkey": []byte("s3cr3t"),
		},
	})
	client := NewClient(clientset)

	data, err := client.GetSecretData(context.Background(), "vision", "minio-secret", "endpoint", "accesskey", "secretkey")
	if err != nil {
		t.Fatalf("GetSecretData failed: %v", err)
	}
	if data["endpoint"] != "minio.minio.svc.cluster.local:9000" || data["secretkey"] != "s3cr3t" {
		t.Errorf("Unexpected data %v", data)
	}

	if _, err := client.GetSecretData(context.Background(), "vision", "minio-secret", "region"); err == nil {
		t.Error("Expected missing field error")
	}
	if _, err := client.GetSecretData(context.Background(), "other", "minio-secret"); err == nil {
		t.Error("Expected not found error")
	}
}
