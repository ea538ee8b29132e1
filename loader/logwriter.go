package loader

import (
	"bytes"

	"go.uber.org/zap"
)

// logWriter forwards guest stdout and stderr to the host log, one entry per
// write.
type logWriter struct {
	logger *zap.Logger
	stream string
}

func (w *logWriter) Write(p []byte) (int, error) {
	msg := bytes.TrimRight(p, "\r\n")
	if len(msg) > 0 {
		w.logger.Info(string(msg), zap.String("stream", w.stream))
	}
	return len(p), nil
}
