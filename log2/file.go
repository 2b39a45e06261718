package log2

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// NewFile writes to stderr and rotated file at config.Path.
// Caller should Close returned closer on exit to flush rotation state.
func NewFile(config FileConfig, level Level) (*Log, io.Closer) {
	if config.Path == "" {
		return NewStderr(level), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}
	return NewWriter(io.MultiWriter(os.Stderr, lj), level), lj
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
