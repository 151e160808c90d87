package awtrix

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

const (
	// DefaultFallbackSize matches the 8x32 AWTRIX matrix.
	DefaultFallbackSize = 256
	// DefaultFallbackColor fills the built-in offline frame.
	DefaultFallbackColor = 0
)

const fallbackFrameKey = "offline"

// LoadFallbackFrame reads the offline frame from a screen data file.
// The file holds a JSON object whose "offline" key is a pixel array.
// A missing or malformed file yields DefaultFallbackFrame.
func LoadFallbackFrame(path string, logger *zap.Logger) Frame {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("awtrix: could not read screen data file, using default offline frame",
			zap.String("path", path), zap.Error(err))
		return DefaultFallbackFrame()
	}
	var frames map[string]Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		logger.Warn("awtrix: malformed screen data file, using default offline frame",
			zap.String("path", path), zap.Error(err))
		return DefaultFallbackFrame()
	}
	frame, ok := frames[fallbackFrameKey]
	if !ok || frame == nil {
		logger.Warn("awtrix: screen data file has no offline frame, using default",
			zap.String("path", path))
		return DefaultFallbackFrame()
	}
	return frame
}

func DefaultFallbackFrame() Frame {
	frame := make(Frame, DefaultFallbackSize)
	for i := range frame {
		frame[i] = DefaultFallbackColor
	}
	return frame
}
