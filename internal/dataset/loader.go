package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sureal/internal/ports"
)

// Format is a dataset serialization.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension. Python datasets
// and unknown extensions return ports.ErrUnsupportedFormat.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".py":
		return "", fmt.Errorf("%w: %s: python dataset modules cannot be loaded, convert them to .json",
			ports.ErrUnsupportedFormat, path)
	default:
		return "", fmt.Errorf("%w: %q (supported: .json, .yaml, .yml)", ports.ErrUnsupportedFormat, ext)
	}
}

// Loader parses and validates datasets. Parsed datasets are cached by the
// SHA-256 of their bytes, and concurrent loads of the same content are
// collapsed into one parse. A Loader is safe for concurrent use.
//
// Cached datasets are shared: callers must not modify a returned Dataset.
type Loader struct {
	validator *validator.Validate
	cache     map[string]*Dataset
	cacheMu   sync.RWMutex
	sf        singleflight.Group
}

// NewLoader creates a loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{
		validator: newValidator(),
		cache:     make(map[string]*Dataset),
	}
}

// LoadFile reads a dataset from path, choosing the decoder by extension.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	cleanPath := filepath.Clean(path)
	format, err := FormatFromPath(cleanPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return l.load(ctx, data, format, cleanPath)
}

// LoadReader reads a dataset of the given format from r.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, format Format) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return l.load(ctx, data, format, "")
}

func (l *Loader) load(ctx context.Context, data []byte, format Format, source string) (*Dataset, error) {
	sum := sha256.Sum256(append([]byte(format+":"), data...))
	key := hex.EncodeToString(sum[:])

	v, err, shared := l.sf.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		cached, ok := l.cache[key]
		l.cacheMu.RUnlock()
		if ok {
			return cached, nil
		}

		d, err := decode(data, format)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s dataset %s: %w", format, source, err)
		}
		if err := validateDataset(l.validator, d, source); err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = d
		l.cacheMu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	d := v.(*Dataset)
	zerolog.Ctx(ctx).Debug().
		Str("source", source).
		Str("dataset", d.Name).
		Str("kind", string(d.Kind())).
		Int("ref_videos", len(d.RefVideos)).
		Int("dis_videos", len(d.DisVideos)).
		Bool("shared", shared).
		Msg("dataset loaded")
	return d, nil
}

func decode(data []byte, format Format) (*Dataset, error) {
	var d Dataset
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ports.ErrUnsupportedFormat, format)
	}
	return &d, nil
}

// Load reads and validates the dataset at path with a fresh Loader.
func Load(ctx context.Context, path string) (*Dataset, error) {
	return NewLoader().LoadFile(ctx, path)
}

// Save writes d to path as indented JSON, or as YAML for a .yaml or .yml
// extension.
func Save(d *Dataset, path string) error {
	format := FormatJSON
	if f, err := FormatFromPath(path); err == nil {
		format = f
	}

	var (
		data []byte
		err  error
	)
	if format == FormatYAML {
		data, err = yaml.Marshal(d)
	} else {
		data, err = json.MarshalIndent(d, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
