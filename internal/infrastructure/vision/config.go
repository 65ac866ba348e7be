package vision

import "errors"

// ErrNoGoCV сборка без тега gocv
var ErrNoGoCV = errors.New("gocv build tag is not enabled")

const (
	DefaultInputSize    = 640
	DefaultConfidence   = 0.25
	DefaultNMSThreshold = 0.45
)

// DNNConfig параметры модели детекции
type DNNConfig struct {
	ModelPath           string
	Classes             []string // метки в порядке идентификаторов классов модели
	InputSize           int
	ConfidenceThreshold float32
	NMSThreshold        float32
}

func (c DNNConfig) withDefaults() DNNConfig {
	if c.InputSize <= 0 {
		c.InputSize = DefaultInputSize
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidence
	}
	if c.NMSThreshold <= 0 {
		c.NMSThreshold = DefaultNMSThreshold
	}
	return c
}

const (
	// OutputExtension расширение размеченного видео
	OutputExtension = ".mp4"
	// DefaultFourCC кодек размеченного видео
	DefaultFourCC = "mp4v"
)
