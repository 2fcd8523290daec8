package lg

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TranscriptFile is the per-run provisioning transcript kept in the working directory.
const TranscriptFile = "provision.log"

// NewTranscript opens the provisioning transcript under workingDir.
// An empty workingDir disables the transcript: Discard and a no-op closer are returned.
func NewTranscript(workingDir string) (Logger, func() error, error) {
	if workingDir == "" {
		return Discard, func() error { return nil }, nil
	}

	path := filepath.Join(workingDir, TranscriptFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript %s: %w", path, err)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "msg",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeTime:  zapcore.RFC3339TimeEncoder,
		EncodeLevel: zapcore.CapitalLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)
	logger := zap.New(core)

	closer := func() error {
		_ = logger.Sync()
		return file.Close()
	}
	return &zapLogger{l: logger}, closer, nil
}
