package wasmplugin

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igne-dev/pluginhost/plugin/entities"
)

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1, 1},
		{0x1000, 256},
		{0xffffffff, 0xffffffff},
	}
	for _, tc := range tests {
		packed := pack(uint64(tc.ptr), uint64(tc.length))
		ptr, length := unpack(packed)
		assert.Equal(t, tc.ptr, ptr)
		assert.Equal(t, tc.length, length)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything else"))
}

func TestFactory_RejectsEmptyModule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f, err := NewFactory(ctx, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close(ctx) })

	manifest := entities.Manifest{ID: "calendar", Name: "Calendar", Version: "1.0.0", MinAppVersion: "1.0.0"}
	_, err = f.New(ctx, manifest, nil)
	assert.Error(t, err)

	p, err := f.New(ctx, manifest, []byte{0x00, 0x61, 0x73, 0x6d})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
