package fermata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	Ft "github.com/corveau/fermata/types"
)

const (
	webTimeout = 10 * time.Second
)

type HTTPClient interface {
	Get(string) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// SingleFetchWithClient handles the messy business of the HTTP connection
// and is testable with dependency injection, called by SingleFetch
func SingleFetchWithClient(url string, c HTTPClient) (int, []byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
			return
		}
	}()

	return resp.StatusCode, body, err
}

// SingleFetch returns the Response Code, raw byte stream body, and error
// This uses a Shared HTTP Client:
// - to reuse existing endpoint connections
// - to avoid stale connections that eat up OS FDs
func SingleFetch(url string) (int, []byte, error) {
	return SingleFetchWithClient(url, sharedHTTPClient)
}

// PatternsFromURL retrieves a remote pattern catalog
func PatternsFromURL(url string) ([]*BreathingPattern, error) {
	code, body, err := SingleFetch(url)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("pattern catalog fetch returned %d", code)
	}
	return ParsePatternLines(bytes.NewReader(body))
}

// PatternsFromFile reads a pattern catalog off local disk
func PatternsFromFile(path string) ([]*BreathingPattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParsePatternLines(file)
}

// ParsePatternLines streams a pattern catalog in its line format:
//
//	# comment
//	[calm Calm Breathing]
//	Inhale=4
//	Exhale=6
//
// A bracketed header opens a pattern, naming its id and display
// name. The Label=ratio lines below it are ordered, order IS the
// cycle. Malformed lines are logged and skipped, the ratios
// themselves are judged later at registration.
func ParsePatternLines(reader io.Reader) ([]*BreathingPattern, error) {
	var found []*BreathingPattern
	var current *BreathingPattern
	var defs []Ft.PhaseDef

	flush := func() {
		if current == nil {
			return
		}
		for _, d := range defs {
			current.Phases = append(current.Phases, d.Label)
			current.Ratios = append(current.Ratios, d.Ratio)
		}
		found = append(found, current)
		current = nil
		defs = nil
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// ignore whitespace and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// a header line opens the next pattern
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()

			header := strings.Fields(strings.Trim(line, "[]"))
			if len(header) == 0 {
				slog.Error("WARNING: Empty pattern header")
				continue
			}

			current = &BreathingPattern{ID: header[0], Name: header[0]}
			if len(header) > 1 {
				current.Name = strings.Join(header[1:], " ")
			}
			continue
		}

		if current == nil {
			slog.Error("WARNING: Phase line before any header", slog.String("line", line))
			continue
		}

		// Split on /=/
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			slog.Error("WARNING: Invalid line", slog.String("line", line))
			continue
		}

		// Extract Label, Clean up Value
		label := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		// Remove quotes
		value = strings.Trim(value, `"'`)
		// Take care of any trailing quotes and comments
		if pos := strings.IndexAny(value, `"'#`); pos != -1 {
			value = strings.TrimSpace(value[:pos])
		}

		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			slog.Error("WARNING: Invalid ratio", slog.String("line", line))
			continue
		}

		defs = append(defs, Ft.PhaseDef{Label: label, Ratio: ratio})
	}

	if err := scanner.Err(); err != nil {
		slog.Error("Problem scanning input", slog.Any("Error", err))
		return nil, fmt.Errorf("scanning error: %w", err)
	}

	flush()

	return found, nil
}

// ImportPatterns extends the catalog from the configured sources.
// Import trouble of any kind logs and moves on, the built-in
// catalog always stands, so boot never fails here. Returns how
// many patterns registered.
func ImportPatterns(cat *Catalog, cf *ConfigFile) int {
	var incoming []*BreathingPattern

	// the environment wins over the config file
	path := cf.Patterns
	if env := os.Getenv("FERMATA_PATTERNS"); env != "" {
		path = env
	}

	if path != "" {
		found, err := PatternsFromFile(path)
		if err != nil {
			slog.Error("Could not read pattern file",
				slog.String("path", path), slog.Any("Error", err))
		} else {
			incoming = append(incoming, found...)
		}
	}

	if cf.CatalogURL != "" {
		found, err := PatternsFromURL(cf.CatalogURL)
		if err != nil {
			slog.Error("Could not fetch pattern catalog",
				slog.String("url", cf.CatalogURL), slog.Any("Error", err))
		} else {
			incoming = append(incoming, found...)
		}
	}

	registered := 0
	for _, bp := range incoming {
		if err := cat.Register(bp); err != nil {
			slog.Error("Skipping imported pattern", slog.Any("Error", err))
			continue
		}
		registered++
	}

	if registered > 0 {
		slog.Info("Imported patterns", slog.Int("count", registered))
	}

	return registered
}
