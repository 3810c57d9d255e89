package dna

import (
	"math/rand/v2"
	"sync"
)

const (
	ZombieTag uint64 = 1
	HumanTag  uint64 = 2

	// tag occupies the 14th hex digit, 13 random digits follow
	randomBits = 52
	randomMask = 1<<randomBits - 1
)

type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{
		rng: rng,
	}
}

var defaultGenerator = &Generator{} //nolint:gochecknoglobals

func CreateZombieDNA() uint64 {
	return defaultGenerator.Zombie()
}

func CreateHumanDNA() uint64 {
	return defaultGenerator.Human()
}

func (g *Generator) Zombie() uint64 {
	return g.tagged(ZombieTag)
}

func (g *Generator) Human() uint64 {
	return g.tagged(HumanTag)
}

// MatchUp returns the line-up a zombie faces: two humans and one zombie.
func (g *Generator) MatchUp() [3]uint64 {
	return [3]uint64{g.Human(), g.Human(), g.Zombie()}
}

func (g *Generator) tagged(tag uint64) uint64 {
	return tag<<randomBits | g.random()&randomMask
}

func (g *Generator) random() uint64 {
	if g.rng == nil {
		return rand.Uint64()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rng.Uint64()
}

func KindOf(value uint64) Kind {
	if value == 0 {
		return KindNone
	}

	switch uint64(LeadingDigit(value)) {
	case ZombieTag:
		return KindZombie
	case HumanTag:
		return KindHuman
	default:
		return KindUnknown
	}
}

// LeadingDigit is the most significant hex digit of value, as printed by %x.
func LeadingDigit(value uint64) uint8 {
	for value > 0xf {
		value >>= 4
	}

	return uint8(value) //nolint:gosec
}
