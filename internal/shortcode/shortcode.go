// Package shortcode generates the short codes that identify stored URLs.
//
// Codes are drawn from the URL-safe base64 alphabet (A-Z, a-z, 0-9, '-' and '_')
// so they can be used verbatim as a path segment.
package shortcode

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// MinLength and MaxLength bound the length of a valid short code.
	MinLength = 6
	MaxLength = 10

	// DefaultLength is the length of codes produced by Generate.
	DefaultLength = 8

	entropyBytes = 6
)

// ErrInvalidLength is returned when a generator is configured with a length outside [MinLength, MaxLength].
var ErrInvalidLength = errors.New("invalid short code length")

// Generator produces candidate short codes.
type Generator interface {
	Generate() (string, error)
}

// Generate reads 6 bytes from r and encodes them with the unpadded URL-safe
// base64 alphabet, truncated to DefaultLength characters.
func Generate(r io.Reader) (string, error) {
	const op = "shortcode.Generate"

	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%s: failed to read entropy: %w", op, err)
	}

	code := base64.RawURLEncoding.EncodeToString(buf)
	if len(code) > DefaultLength {
		code = code[:DefaultLength]
	}

	return code, nil
}

// Base64Generator generates codes with Generate over an entropy source.
type Base64Generator struct {
	entropy io.Reader
}

// NewBase64Generator returns a generator reading from entropy.
// A nil entropy source falls back to crypto/rand.
func NewBase64Generator(entropy io.Reader) *Base64Generator {
	if entropy == nil {
		entropy = rand.Reader
	}

	return &Base64Generator{entropy: entropy}
}

func (g *Base64Generator) Generate() (string, error) {
	return Generate(g.entropy)
}

// NanoIDGenerator generates codes of a fixed length with nanoid, whose default
// alphabet is the same URL-safe alphabet used by Generate.
type NanoIDGenerator struct {
	length int
}

// NewNanoIDGenerator returns a nanoid generator producing codes of the given length.
func NewNanoIDGenerator(length int) (*NanoIDGenerator, error) {
	const op = "shortcode.NewNanoIDGenerator"

	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidLength, length)
	}

	return &NanoIDGenerator{length: length}, nil
}

func (g *NanoIDGenerator) Generate() (string, error) {
	const op = "shortcode.NanoIDGenerator.Generate"

	code, err := gonanoid.New(g.length)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return code, nil
}

// Valid reports whether code has a valid length and uses only the URL-safe alphabet.
func Valid(code string) bool {
	if len(code) < MinLength || len(code) > MaxLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		if !isAlphabetByte(code[i]) {
			return false
		}
	}

	return true
}

func isAlphabetByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
