package uuidutil

import (
	"errors"

	"github.com/flippback/prebid-flipp/util/randomutil"
	"github.com/gofrs/uuid"
)

type UUIDGenerator interface {
	Generate() (string, error)
}

// UUIDRandomGenerator produces RFC 4122 version 4 UUIDs from crypto/rand.
type UUIDRandomGenerator struct{}

func (UUIDRandomGenerator) Generate() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

const (
	uuidTemplate = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"
	hexDigits    = "0123456789abcdef"
)

var errNoEntropySource = errors.New("uuidutil: no entropy source configured")

// TemplateGenerator fills uuidTemplate with hex digits drawn from Source. The
// version nibble is always 4 and the variant nibble is one of 8, 9, a or b.
//
// The output only looks like a version 4 UUID: its randomness is whatever Source
// provides, so it must not be used where unpredictability matters.
type TemplateGenerator struct {
	Source randomutil.RandomGenerator
}

func (g TemplateGenerator) Generate() (string, error) {
	if g.Source == nil {
		return "", errNoEntropySource
	}

	out := make([]byte, len(uuidTemplate))
	for i := 0; i < len(uuidTemplate); i++ {
		switch uuidTemplate[i] {
		case 'x':
			out[i] = hexDigits[g.Source.GenerateInt63()&0xf]
		case 'y':
			out[i] = hexDigits[g.Source.GenerateInt63()&0x3|0x8]
		default:
			out[i] = uuidTemplate[i]
		}
	}
	return string(out), nil
}
