// Package images stores the player snapshots that accompany saved scores.
package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder
	_ "image/jpeg" // decoder
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp" // decoder for canvas.toDataURL("image/webp")
)

const (
	defaultBase   = "player"
	maxBaseRunes  = 32
	maxSuffix     = 1000
	dirPerm       = 0o755
	filePerm      = 0o644
	dataURLPrefix = "data:"
	fileExtension = ".png"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// Store writes snapshots into one directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// SanitizeName maps a player name to a safe file base.
func SanitizeName(name string) string {
	base := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if base == "" {
		return defaultBase
	}
	if r := []rune(base); len(r) > maxBaseRunes {
		base = string(r[:maxBaseRunes])
	}
	return base
}

// IsDataURL reports whether v looks like an inline data URL.
func IsDataURL(v string) bool {
	return strings.HasPrefix(v, dataURLPrefix)
}

// SaveDataURL decodes dataURL and writes it as <name>.png, adding _N rather
// than overwriting. Decodable images are re-encoded as PNG, anything else is
// written verbatim. Returns the file name relative to Dir.
func (s *Store) SaveDataURL(name, dataURL string) (string, error) {
	raw, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	f, fileName, err := s.create(SanitizeName(name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	payload := raw
	if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			payload = buf.Bytes()
		}
	}
	if _, err := f.Write(payload); err != nil {
		os.Remove(filepath.Join(s.dir, fileName))
		return "", fmt.Errorf("write image: %w", err)
	}
	return fileName, nil
}

// create claims the first free <base>[_N].png atomically.
func (s *Store) create(base string) (*os.File, string, error) {
	for i := 0; i <= maxSuffix; i++ {
		fileName := base + fileExtension
		if i > 0 {
			fileName = base + "_" + strconv.Itoa(i) + fileExtension
		}
		f, err := os.OpenFile(filepath.Join(s.dir, fileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			return f, fileName, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create image: %w", err)
		}
	}
	return nil, "", fmt.Errorf("%s: %w", base, ErrNoFreeName)
}

func decodeDataURL(v string) ([]byte, error) {
	if !IsDataURL(v) {
		return nil, ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(v, ",")
	if !ok {
		return nil, ErrInvalidImage
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidImage)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) == 0 {
		return nil, ErrInvalidImage
	}
	return raw, nil
}
