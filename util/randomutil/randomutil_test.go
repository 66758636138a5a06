package randomutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededGeneratorIsDeterministic(t *testing.T) {
	a := NewSeededGenerator(42)
	b := NewSeededGenerator(42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.GenerateInt63(), b.GenerateInt63())
	}
}

func TestRandomNumberGeneratorNonNegative(t *testing.T) {
	var gen RandomGenerator = RandomNumberGenerator{}
	for i := 0; i < 10; i++ {
		assert.GreaterOrEqual(t, gen.GenerateInt63(), int64(0))
	}
}
