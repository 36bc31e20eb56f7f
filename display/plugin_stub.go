//go:build nomidi

package fermata

import (
	"fmt"
	"log/slog"

	Fe "github.com/corveau/fermata/engine"
)

func InitMIDISink(e *Fe.Engine) error {
	slog.Warn("MIDI support not compiled in this build")
	return fmt.Errorf("MIDI support not available")
}
