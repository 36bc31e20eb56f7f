package fermata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
)

// ConfigFile is the single boot-time configuration object.
// Settings that the engine also persists (pattern, durations,
// preference flags) act as first-boot seeds, values restored
// from the store afterwards win.
type ConfigFile struct {
	Listen         string  `json:"listen"`
	DBPath         string  `json:"db_path"`
	Pattern        string  `json:"pattern"`
	BaseDuration   float64 `json:"base_duration"`
	SessionMinutes int     `json:"session_minutes"`
	Zen            bool    `json:"zen"`
	Muted          bool    `json:"muted"`
	Haptics        bool    `json:"haptics"`
	Sink           string  `json:"sink"`
	Curve          string  `json:"curve"`
	Patterns       string  `json:"patterns"`
	CatalogURL     string  `json:"catalog_url"`
}

// DefaultConfig is the configuration a bare process runs with.
// Decoding a file on top of it means absent keys keep these.
func DefaultConfig() *ConfigFile {
	return &ConfigFile{
		Listen:         ":8090",
		DBPath:         "./fermata_db",
		Pattern:        "box",
		BaseDuration:   4.0,
		SessionMinutes: 10,
		Zen:            true,
		Muted:          false,
		Haptics:        true,
		Sink:           "silent",
		Curve:          "sine",
	}
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (*ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

func LoadConfig(file *os.File) (*ConfigFile, error) {
	// decode json over the defaults, absent keys keep them
	config := DefaultConfig()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		slog.Error("could not decode file")
		return nil, err
	}

	return config, nil
}

// Seed applies config-file values as first-boot defaults.
// It writes fields directly and never persists, so calling
// Restore afterwards lets stored settings win.
func (e *Engine) Seed(cf *ConfigFile) {
	if cf == nil {
		return
	}

	e.MU.Lock()
	defer e.MU.Unlock()

	if cf.Pattern != "" {
		if bp := e.Catalog.Lookup(cf.Pattern); bp != nil {
			e.Pattern = bp
			e.Label = bp.Name
		}
	}
	if cf.BaseDuration > 0 {
		e.BaseDuration = cf.BaseDuration
	}
	if cf.SessionMinutes >= 1 {
		e.SessionMinutes = cf.SessionMinutes
	}
	e.ZenEnabled = cf.Zen
	e.Muted = cf.Muted
	e.Haptics = cf.Haptics

	e.Remaining = e.SessionMinutes * 60
	e.Countdown = clockText(e.Remaining)
}
