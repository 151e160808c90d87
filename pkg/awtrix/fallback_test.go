package awtrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func writeScreenData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screen_data.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFallbackFrame(t *testing.T) {

	assert := assert.New(t)

	path := writeScreenData(t, `{"offline": [16711680, 0, 16711680]}`)

	frame := LoadFallbackFrame(path, zap.NewNop())
	assert.Equal(Frame{16711680, 0, 16711680}, frame)
}

func TestLoadFallbackFrameMissingFile(t *testing.T) {

	assert := assert.New(t)

	frame := LoadFallbackFrame(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())
	assert.Equal(DefaultFallbackFrame(), frame)
}

func TestLoadFallbackFrameMalformed(t *testing.T) {

	assert := assert.New(t)

	path := writeScreenData(t, `not json at all`)

	frame := LoadFallbackFrame(path, zap.NewNop())
	assert.Equal(DefaultFallbackFrame(), frame)
}

func TestLoadFallbackFrameMissingKey(t *testing.T) {

	assert := assert.New(t)

	path := writeScreenData(t, `{"boot": [1, 2, 3]}`)

	frame := LoadFallbackFrame(path, zap.NewNop())
	assert.Equal(DefaultFallbackFrame(), frame)
}

func TestDefaultFallbackFrame(t *testing.T) {

	assert := assert.New(t)

	frame := DefaultFallbackFrame()
	assert.Len(frame, DefaultFallbackSize)
	for _, px := range frame {
		assert.Equal(DefaultFallbackColor, px)
	}
}
