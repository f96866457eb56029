package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-story-studio/internal/config"
	"github.com/shouni/go-story-studio/pkg/gateway"
)

func TestBuildAppContext(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyOptions(config.GenerateOptions{ImageModel: "image-test"})

	appCtx, err := BuildAppContext(context.Background(), cfg, nil,
		WithCredentials(gateway.StaticCredential{APIKey: "test-key"}))
	require.NoError(t, err)

	assert.NotNil(t, appCtx.Gateway)
	assert.NotNil(t, appCtx.Manager)
	assert.NotNil(t, appCtx.Publisher)
	assert.Equal(t, 0, appCtx.Manager.Board().Len())
	assert.Equal(t, "image-test", appCtx.Config.Library.ImageModel)
}
