package s3blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://minio.local:9000", endpointURL("https://minio.local:9000/", false))
	assert.Equal(t, "https://e2.example.com", endpointURL("e2.example.com", true))
	assert.Equal(t, "http://localhost:9000", endpointURL(" localhost:9000 ", false))
	assert.Equal(t, "", endpointURL("", true))
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, ClientConfig{Region: "us-east-1"})
	require.ErrorContains(t, err, "bucket")
	_, err = New(ctx, ClientConfig{Bucket: "skintrend-history"})
	require.ErrorContains(t, err, "region")
	_, err = New(ctx, ClientConfig{Bucket: "skintrend-history", Region: "us-east-1", AccessKey: "only-half"})
	require.ErrorContains(t, err, "together")
}

func TestNewWithStaticCredentials(t *testing.T) {
	c, err := New(context.Background(), ClientConfig{
		Endpoint: "localhost:9000", Region: "us-east-1", Bucket: "skintrend-history",
		AccessKey: "minio", SecretKey: "minio123", ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "skintrend-history", NewWriter(c).bucket)
}
