package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrValidation = errors.New("invalid instruction input")
	ErrDecode     = errors.New("invalid account data")
)

// Instruction layout. Battle and Remove share one fixed size.
const (
	InitSize        = 1
	InstructionSize = 29

	opcodeOffset    = 0
	zombieIDOffset  = 1
	selectionOffset = 2
	dnaOffset       = 3
)

// Account layout, offsets relative to the end of the discriminator.
const (
	DiscriminatorSize = 8
	PublicKeySize     = 32
	ZombieSize        = 24

	ArmyBodySize   = PublicKeySize + MaxZombies*ZombieSize
	ArmyAccountLen = DiscriminatorSize + ArmyBodySize

	BattleBodySize   = PublicKeySize + MaxCards*8 + 3
	BattleAccountLen = DiscriminatorSize + BattleBodySize

	zombieLastFightOffset = 8
	zombieXPOffset        = 16

	battleOrderOffset     = PublicKeySize
	battleZombieIDOffset  = battleOrderOffset + MaxCards*8
	battleSelectionOffset = battleZombieIDOffset + 1
	battleOutcomeOffset   = battleSelectionOffset + 1
)

func EncodeInit() []byte {
	return []byte{byte(OpInit)}
}

func NewBattleInstruction(zombieID int, selection int, dnas [MaxCards]uint64) (BattleInstruction, error) {
	id, err := zombieIndex(zombieID)
	if err != nil {
		return BattleInstruction{}, err
	}

	if selection < 0 || selection >= MaxCards {
		return BattleInstruction{}, fmt.Errorf("%w: selection %d out of range [0, %d)", ErrValidation, selection, MaxCards)
	}

	return BattleInstruction{
		ZombieID:  id,
		Selection: uint8(selection), //nolint:gosec
		DNA:       dnas,
	}, nil
}

func NewRemoveInstruction(zombieID int) (RemoveInstruction, error) {
	id, err := zombieIndex(zombieID)
	if err != nil {
		return RemoveInstruction{}, err
	}

	return RemoveInstruction{ZombieID: id}, nil
}

func zombieIndex(zombieID int) (uint8, error) {
	if zombieID < 0 || zombieID >= MaxZombies {
		return 0, fmt.Errorf("%w: zombie id %d out of range [0, %d)", ErrValidation, zombieID, MaxZombies)
	}

	return uint8(zombieID), nil //nolint:gosec
}

func (b BattleInstruction) Validate() error {
	if b.ZombieID >= MaxZombies {
		return fmt.Errorf("%w: zombie id %d out of range [0, %d)", ErrValidation, b.ZombieID, MaxZombies)
	}

	if b.Selection >= MaxCards {
		return fmt.Errorf("%w: selection %d out of range [0, %d)", ErrValidation, b.Selection, MaxCards)
	}

	return nil
}

func (b BattleInstruction) Encode() ([]byte, error) {
	err := b.Validate()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, InstructionSize)
	buf[opcodeOffset] = byte(OpBattle)
	buf[zombieIDOffset] = b.ZombieID
	buf[selectionOffset] = b.Selection

	for i, v := range b.DNA {
		binary.LittleEndian.PutUint64(buf[dnaOffset+i*8:], v)
	}

	return buf, nil
}

func ParseBattleInstruction(data []byte) (BattleInstruction, error) {
	if len(data) != InstructionSize {
		return BattleInstruction{}, fmt.Errorf("%w: battle instruction is %d bytes, want %d", ErrDecode, len(data), InstructionSize)
	}

	if Opcode(data[opcodeOffset]) != OpBattle {
		return BattleInstruction{}, fmt.Errorf("%w: opcode %d is not battle", ErrDecode, data[opcodeOffset])
	}

	result := BattleInstruction{
		ZombieID:  data[zombieIDOffset],
		Selection: data[selectionOffset],
	}

	for i := range result.DNA {
		result.DNA[i] = binary.LittleEndian.Uint64(data[dnaOffset+i*8:])
	}

	return result, nil
}

func (r RemoveInstruction) Encode() ([]byte, error) {
	if r.ZombieID >= MaxZombies {
		return nil, fmt.Errorf("%w: zombie id %d out of range [0, %d)", ErrValidation, r.ZombieID, MaxZombies)
	}

	buf := make([]byte, InstructionSize)
	buf[opcodeOffset] = byte(OpRemove)
	buf[zombieIDOffset] = r.ZombieID

	return buf, nil
}

func ParseOpcode(data []byte) (Opcode, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty instruction", ErrDecode)
	}

	op := Opcode(data[opcodeOffset])
	if op > OpRemove {
		return 0, fmt.Errorf("%w: unknown opcode %d", ErrDecode, op)
	}

	return op, nil
}

func body(data []byte, want int, kind string) ([]byte, error) {
	if len(data) < want {
		return nil, fmt.Errorf("%w: %s account is %d bytes, want at least %d", ErrDecode, kind, len(data), want)
	}

	return data[DiscriminatorSize:want], nil
}

func DecodeArmy(data []byte) (*Army, error) {
	b, err := body(data, ArmyAccountLen, "army")
	if err != nil {
		return nil, err
	}

	result := &Army{
		Owner: solana.PublicKeyFromBytes(b[:PublicKeySize]),
	}

	for i := range result.Zombies {
		z := b[PublicKeySize+i*ZombieSize:]

		result.Zombies[i] = Zombie{
			DNA: binary.LittleEndian.Uint64(z),
			//nolint:gosec // signed on chain
			LastFight: int64(binary.LittleEndian.Uint64(z[zombieLastFightOffset:])),
			XP:        binary.LittleEndian.Uint64(z[zombieXPOffset:]),
		}
	}

	return result, nil
}

func DecodeBattle(data []byte) (*Battle, error) {
	b, err := body(data, BattleAccountLen, "battle")
	if err != nil {
		return nil, err
	}

	result := &Battle{
		Owner:     solana.PublicKeyFromBytes(b[:PublicKeySize]),
		ZombieID:  b[battleZombieIDOffset],
		Selection: b[battleSelectionOffset],
		Outcome:   Outcome(b[battleOutcomeOffset]),
	}

	for i := range result.ShuffledOrder {
		result.ShuffledOrder[i] = binary.LittleEndian.Uint64(b[battleOrderOffset+i*8:])
	}

	return result, nil
}
