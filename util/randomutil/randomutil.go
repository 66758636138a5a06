package randomutil

import (
	"math/rand"
)

// RandomGenerator is the entropy source behind the user key generator.
type RandomGenerator interface {
	GenerateInt63() int64
}

// RandomNumberGenerator draws from the shared math/rand source.
type RandomNumberGenerator struct{}

func (RandomNumberGenerator) GenerateInt63() int64 {
	return rand.Int63()
}

// SeededGenerator is a deterministic source. It is not safe for concurrent use.
type SeededGenerator struct {
	rnd *rand.Rand
}

func NewSeededGenerator(seed int64) *SeededGenerator {
	return &SeededGenerator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *SeededGenerator) GenerateInt63() int64 {
	return g.rnd.Int63()
}
