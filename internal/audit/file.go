package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"walletnotify/internal/model"
)

// FileSink writes each webhook as an indented JSON file under Dir.
type FileSink struct {
	Dir string
	now func() time.Time
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir, now: time.Now}
}

func (s *FileSink) Save(_ context.Context, event *model.WebhookEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	path := filepath.Join(s.Dir, FileName(event, s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}
