package arena

import (
	"github.com/gagliardetto/solana-go"
	"github.com/vreid/horde/internal/pkg/dna"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
)

type Combatant struct {
	DNA  uint64 `json:"dna"`
	Kind string `json:"kind"`
}

type MatchUp struct {
	Combatants []Combatant `json:"combatants"`
}

func NewMatchUp(dnas [layout.MaxCards]uint64) MatchUp {
	result := MatchUp{
		Combatants: make([]Combatant, 0, len(dnas)),
	}

	for _, v := range dnas {
		result.Combatants = append(result.Combatants, Combatant{
			DNA:  v,
			Kind: dna.KindOf(v).String(),
		})
	}

	return result
}

type BattleBody struct {
	ZombieID  *int                     `json:"zombie_id"`
	Selection *int                     `json:"selection"`
	DNA       *[layout.MaxCards]uint64 `json:"dna"`
}

type BattleResult struct {
	Receipt *orchestrator.Receipt `json:"receipt"`
	Battle  *layout.Battle        `json:"battle,omitempty"`
}

type ArmyView struct {
	Address   solana.PublicKey `json:"address"`
	Army      *layout.Army     `json:"army"`
	Active    []layout.Slot    `json:"active"`
	FreeSlots int              `json:"free_slots"`
}

type Problem struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Code    *uint32  `json:"code,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}
