// Package loader reads a profile file from disk, undoes any gzip or zstd
// compression and hands the bytes to the matching format decoder.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"pprof-blame/internal/cpuprofile"
	"pprof-blame/internal/pprof"
	"pprof-blame/internal/profile"
	"pprof-blame/internal/sleepy"
)

// Auto selects the decoder from the file contents.
const Auto = ""

// ErrUnknownFormat is returned for a format name no decoder handles.
var ErrUnknownFormat = errors.New("unknown profile format")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic  = []byte("PK\x03\x04")
)

var decoders = map[string]func([]byte) (*profile.Profile, error){
	pprof.Format:      pprof.Decode,
	cpuprofile.Format: cpuprofile.Decode,
	sleepy.Format:     sleepy.Decode,
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{pprof.Format, cpuprofile.Format, sleepy.Format}
}

// Options controls Load.
type Options struct {
	// Format forces a decoder. Auto detects it.
	Format string
}

// Load reads and decodes the profile at path.
func Load(path string, opts Options) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := Decode(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":    path,
		"format":  p.Format,
		"samples": len(p.Samples),
		"frames":  p.Registry.Len(),
	}).Debug("Loaded profile")
	return p, nil
}

// Decode decompresses data if needed and decodes it.
func Decode(data []byte, opts Options) (*profile.Profile, error) {
	data, err := decompress(data)
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == Auto {
		format = sniff(data)
	}
	decode, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return decode(data)
}

func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip stream: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, zstdMagic):
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out, err := zr.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress zstd stream: %w", err)
		}
		return out, nil
	}
	return data, nil
}

func sniff(data []byte) string {
	if bytes.HasPrefix(data, zipMagic) {
		return sleepy.Format
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return cpuprofile.Format
	}
	return pprof.Format
}
