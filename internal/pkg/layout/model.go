package layout

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

type Opcode uint8

const (
	OpInit   Opcode = 0
	OpBattle Opcode = 1
	OpRemove Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case OpInit:
		return "init"
	case OpBattle:
		return "battle"
	case OpRemove:
		return "remove"
	}

	return "unknown"
}

func (o Opcode) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

const (
	MaxZombies = 10
	MaxCards   = 3

	// the program refuses a fight until this long after the last one
	Cooldown = 60 * time.Second
)

type Zombie struct {
	DNA       uint64 `json:"dna"`
	LastFight int64  `json:"last_fight"`
	XP        uint64 `json:"xp"`
}

func (z Zombie) Empty() bool {
	return z.DNA == 0
}

// LastFightTime is the zero time when the zombie never fought.
func (z Zombie) LastFightTime() time.Time {
	if z.LastFight <= 0 {
		return time.Time{}
	}

	return time.Unix(z.LastFight, 0)
}

func (z Zombie) Ready(now time.Time) bool {
	return now.Unix()-z.LastFight >= int64(Cooldown/time.Second)
}

var breeds = [...]string{"Biter", "Runner", "Spitter", "Tank"} //nolint:gochecknoglobals

func (z Zombie) Breed() string {
	return breeds[z.DNA%uint64(len(breeds))]
}

type Army struct {
	Owner   solana.PublicKey   `json:"owner"`
	Zombies [MaxZombies]Zombie `json:"zombies"`
}

type Slot struct {
	Index  uint8  `json:"index"`
	Zombie Zombie `json:"zombie"`
}

// Active lists the occupied slots. Index is the slot position to send as
// zombie id, not the position in the returned list.
func (a *Army) Active() []Slot {
	result := make([]Slot, 0, MaxZombies)

	for i, z := range a.Zombies {
		if z.Empty() {
			continue
		}

		result = append(result, Slot{
			Index:  uint8(i), //nolint:gosec
			Zombie: z,
		})
	}

	return result
}

func (a *Army) FreeSlots() int {
	return MaxZombies - len(a.Active())
}

type Outcome uint8

const (
	OutcomeLost Outcome = 0
	OutcomeWon  Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	}

	return fmt.Sprintf("unknown(%d)", uint8(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts what MarshalText produces, including the
// unknown(n) form of bytes the program never writes.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "won":
		*o = OutcomeWon
	case "lost":
		*o = OutcomeLost
	default:
		var raw uint8

		_, err := fmt.Sscanf(string(text), "unknown(%d)", &raw)
		if err != nil || raw == uint8(OutcomeWon) || raw == uint8(OutcomeLost) {
			return fmt.Errorf("%w: outcome %q", ErrDecode, text)
		}

		*o = Outcome(raw)
	}

	return nil
}

type Battle struct {
	Owner         solana.PublicKey `json:"owner"`
	ShuffledOrder [MaxCards]uint64 `json:"shuffled_order"`
	ZombieID      uint8            `json:"zombie_id"`
	Selection     uint8            `json:"selection"`
	Outcome       Outcome          `json:"outcome"`
}

func (b *Battle) Won() bool {
	return b.Outcome == OutcomeWon
}

// Chosen is the combatant the player picked after the program shuffled them.
func (b *Battle) Chosen() uint64 {
	if int(b.Selection) >= MaxCards {
		return 0
	}

	return b.ShuffledOrder[b.Selection]
}

type BattleInstruction struct {
	ZombieID  uint8
	Selection uint8
	DNA       [MaxCards]uint64
}

type RemoveInstruction struct {
	ZombieID uint8
}
