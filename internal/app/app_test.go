package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/picknpack/dashboard/internal/config"
	"github.com/picknpack/dashboard/internal/overlay"
)

func TestNewLogger_Levels(t *testing.T) {
	debug, err := NewLogger("DEBUG")
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))

	info, err := NewLogger("info")
	require.NoError(t, err)
	assert.False(t, info.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	cfg := &config.Config{APIBaseURL: "/api", ShopID: 1}
	_, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithKV(overlay.NewMemoryKV()))
	assert.Error(t, err)
}

func TestNew_PersistsOverlayInStateFile(t *testing.T) {
	cfg := &config.Config{
		APIBaseURL: "http://localhost:3000",
		ShopID:     1,
		StatePath:  filepath.Join(t.TempDir(), "nested", "state.db"),
	}
	ctx := context.Background()

	a, err := New(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, a.Overlay.SetItemPicked(ctx, 7, 701, true))
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, map[int64]bool{701: true}, b.Overlay.PickedSet(7))
	assert.True(t, b.Poller != nil && !b.Poller.Enabled(), "zero interval disables polling")
}
