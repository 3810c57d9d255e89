package journal

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
)

type Entry struct {
	Settlement orchestrator.Settlement `json:"settlement"`

	// Battle is nil when the account could not be read back.
	Battle *layout.Battle `json:"battle,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

type Tally struct {
	Owner  solana.PublicKey `json:"owner"`
	Wins   int64            `json:"wins"`
	Losses int64            `json:"losses"`
}
