package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported batch encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Decode reads one batch in the given format.
func Decode(r io.Reader, format string) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch: %w", err)
	}
	return DecodeBytes(data, format)
}

// DecodeBytes parses one batch in the given format.
func DecodeBytes(data []byte, format string) (Batch, error) {
	var b Batch
	switch strings.ToLower(format) {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&b); err != nil {
			return Batch{}, fmt.Errorf("parse batch JSON: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, &b); err != nil {
			return Batch{}, fmt.Errorf("parse batch YAML: %w", err)
		}
	default:
		return Batch{}, fmt.Errorf("unsupported batch format %q: must be json or yaml", format)
	}
	return b, nil
}

// DecodeFile reads a batch file, choosing the format from its extension.
func DecodeFile(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch file: %w", err)
	}
	return DecodeBytes(data, FormatFromPath(path))
}

// FormatFromPath maps .yaml and .yml to YAML and everything else to JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
