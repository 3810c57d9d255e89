package orchestrator

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/vreid/horde/internal/pkg/layout"
)

// Ledger is the network capability the orchestrator drives.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Simulate(ctx context.Context, tx *solana.Transaction) (*Simulation, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Confirm blocks until the transaction reached confirmed commitment or ctx is done.
	Confirm(ctx context.Context, signature solana.Signature) (*Confirmation, error)
	// AccountData returns ErrAccountNotFound when nothing is stored at address.
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
}

type Simulation struct {
	// Err is the execution error reported by the node, nil on success.
	Err  any
	Logs []string
}

type Confirmation struct {
	Slot uint64
	Err  any
}

type Stage uint8

const (
	StageBuilt Stage = iota
	StageSimulated
	StageSimulationFailed
	StageSubmitted
	StageConfirmed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageBuilt:
		return "built"
	case StageSimulated:
		return "simulated"
	case StageSimulationFailed:
		return "simulation-failed"
	case StageSubmitted:
		return "submitted"
	case StageConfirmed:
		return "confirmed"
	case StageFailed:
		return "failed"
	}

	return "unknown"
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type BattleRequest struct {
	ZombieID  int       `json:"zombie_id"`
	Selection int       `json:"selection"`
	DNA       [3]uint64 `json:"dna"`
}

// Settlement describes a confirmed battle whose account can now be read.
type Settlement struct {
	Signature     solana.Signature `json:"signature"`
	Owner         solana.PublicKey `json:"owner"`
	BattleAddress solana.PublicKey `json:"battle_address"`
	ZombieID      uint8            `json:"zombie_id"`
	Selection     uint8            `json:"selection"`
	DNA           [3]uint64        `json:"dna"`
	Slot          uint64           `json:"slot"`
}

type Receipt struct {
	FlowID         string           `json:"flow_id"`
	Op             layout.Opcode    `json:"op"`
	Signature      solana.Signature `json:"signature"`
	Stage          Stage            `json:"stage"`
	Slot           uint64           `json:"slot"`
	SimulationLogs []string         `json:"simulation_logs,omitempty"`
	Settlement     *Settlement      `json:"settlement,omitempty"`
}
