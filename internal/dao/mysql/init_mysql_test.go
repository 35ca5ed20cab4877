package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studyhub_server/internal/config"
)

func TestExpiryEventHorizonTrailsCleanup(t *testing.T) {
	retention := config.RetentionConfig{MessageTTL: 24 * time.Hour, CleanupInterval: time.Hour}
	require.Equal(t, 26*time.Hour, ExpiryEventHorizon(retention))
	require.Greater(t, ExpiryEventHorizon(retention), retention.MessageTTL+retention.CleanupInterval)
}
