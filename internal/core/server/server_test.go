package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/experiences/internal/core/api"
	"github.com/solatis/experiences/internal/core/config"
	"github.com/solatis/experiences/internal/engine"
	"github.com/solatis/experiences/internal/frequency"
	"github.com/solatis/experiences/internal/types"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// newTestService registers a capped shop banner and an uncapped fallback.
func newTestService(t *testing.T) *api.Service {
	t.Helper()
	e := engine.New(frequency.NewMemoryStore(), engine.WithClock(engine.NewFixedClock(testNow)))
	require.NoError(t, e.Register("sale", types.Experience{
		ID:        "sale",
		Type:      types.TypeBanner,
		Targeting: types.TargetingRule{URL: &types.URLRule{Contains: "/shop"}},
		Frequency: &types.FrequencyRule{Max: 1, Per: types.WindowDay},
		Priority:  10,
	}))
	require.NoError(t, e.Register("notice", types.Experience{ID: "notice", Type: types.TypeInline}))

	svc, err := api.NewService(e, nil, nil)
	require.NoError(t, err)
	return svc
}

func testServerConfig() *config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	return cfg
}
