package s3

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	cfg, err := ConfigFromEnv(context.Background(), envconfig.MapLookuper(map[string]string{
		"S3_ENDPOINT":    "minio:9000",
		"S3_ACCESS_KEY":  "ak",
		"S3_SECRET_KEY":  "sk",
		"S3_DISABLE_TLS": "true",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, "http://minio:9000", cfg.BaseEndpoint())
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Endpoint: "s3.local"}.Validate())
	assert.NoError(t, Config{Endpoint: "s3.local", AccessKey: "a", SecretKey: "b"}.Validate())
}

func TestBaseEndpointKeepsScheme(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", Config{Endpoint: "s3.example.com"}.BaseEndpoint())
	assert.Equal(t, "http://s3.example.com", Config{Endpoint: "http://s3.example.com", DisableTLS: false}.BaseEndpoint())
}

func TestEncodeSHA256(t *testing.T) {
	got, err := encodeSHA256("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	require.NoError(t, err)
	assert.Equal(t, "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", got)

	_, err = encodeSHA256("")
	assert.Error(t, err)
	_, err = encodeSHA256("zz")
	assert.Error(t, err)
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)

	var c *Client
	assert.Error(t, c.PutObject(context.Background(), "b", "k", nil, 0, "00"))
}
