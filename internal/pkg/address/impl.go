package address

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/vreid/horde/internal/pkg/common"
)

const ArmySeed = "ARMY"

var ErrDerivation = errors.New("address derivation failed")

// Deriver computes the program derived addresses of the game accounts.
// Client and program agree on them without a round trip.
type Deriver struct {
	programID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) *Deriver {
	return &Deriver{
		programID: programID,
	}
}

func (d *Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

func (d *Deriver) ArmyAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	return d.find("army", [][]byte{
		[]byte(ArmySeed),
		owner.Bytes(),
	})
}

func (d *Deriver) BattleAddress(owner solana.PublicKey, dna1, dna2, dna3 uint64) (solana.PublicKey, error) {
	return d.find("battle", [][]byte{
		owner.Bytes(),
		common.Uint64ToBytes(dna1),
		common.Uint64ToBytes(dna2),
		common.Uint64ToBytes(dna3),
	})
}

func (d *Deriver) find(kind string, seeds [][]byte) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(seeds, d.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s address: %w", ErrDerivation, kind, err)
	}

	return pda, nil
}
