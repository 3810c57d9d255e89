package dna_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/horde/internal/pkg/dna"
)

func TestCreateDNALeadingDigit(t *testing.T) {
	t.Parallel()

	for range 1000 {
		zombie := fmt.Sprintf("%x", dna.CreateZombieDNA())
		human := fmt.Sprintf("%x", dna.CreateHumanDNA())

		require.Len(t, zombie, 14)
		require.Len(t, human, 14)
		require.Equal(t, byte('1'), zombie[0])
		require.Equal(t, byte('2'), human[0])
	}
}

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	a := dna.NewGenerator(rand.New(rand.NewPCG(1, 2))) //nolint:gosec
	b := dna.NewGenerator(rand.New(rand.NewPCG(1, 2))) //nolint:gosec

	assert.Equal(t, a.MatchUp(), b.MatchUp())
}

func TestMatchUp(t *testing.T) {
	t.Parallel()

	g := dna.NewGenerator(rand.New(rand.NewPCG(7, 7))) //nolint:gosec
	line := g.MatchUp()

	assert.Equal(t, dna.KindHuman, dna.KindOf(line[0]))
	assert.Equal(t, dna.KindHuman, dna.KindOf(line[1]))
	assert.Equal(t, dna.KindZombie, dna.KindOf(line[2]))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, dna.KindNone, dna.KindOf(0))
	assert.Equal(t, dna.KindZombie, dna.KindOf(0x1abcdef0123456))
	assert.Equal(t, dna.KindHuman, dna.KindOf(0x2000000000000f))
	assert.Equal(t, dna.KindZombie, dna.KindOf(0x1000000000000000))
	assert.Equal(t, dna.KindUnknown, dna.KindOf(0xf000000000000000))
	assert.Equal(t, uint8(0xf), dna.LeadingDigit(0xf000000000000000))
	assert.Equal(t, uint8(7), dna.LeadingDigit(7))
}
