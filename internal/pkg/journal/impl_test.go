package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/journal"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
	"go.uber.org/zap/zaptest"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

type fakeFetcher struct {
	battles map[solana.PublicKey]*layout.Battle
	err     error
}

func (f *fakeFetcher) FetchBattle(_ context.Context, account solana.PublicKey) (*layout.Battle, error) {
	if f.err != nil {
		return nil, f.err
	}

	battle, ok := f.battles[account]
	if !ok {
		return nil, orchestrator.ErrAccountNotFound
	}

	return battle, nil
}

func newJournal(t *testing.T, fetcher *fakeFetcher) *journal.JournalService {
	t.Helper()

	databaseService, err := common.OpenDatabase(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = databaseService.Shutdown()
	})

	return &journal.JournalService{
		DatabaseService: databaseService,
		Fetcher:         fetcher,
		Logger:          zaptest.NewLogger(t),
	}
}

func TestHandleSettlement(t *testing.T) {
	t.Parallel()

	owner := solana.NewWallet().PublicKey()
	wonAddress := solana.NewWallet().PublicKey()
	lostAddress := solana.NewWallet().PublicKey()

	fetcher := &fakeFetcher{battles: map[solana.PublicKey]*layout.Battle{
		wonAddress: {
			Owner:         owner,
			ShuffledOrder: [3]uint64{0x2a, 0x2b, 0x1c},
			Selection:     1,
			Outcome:       layout.OutcomeWon,
		},
		lostAddress: {
			Owner:         owner,
			ShuffledOrder: [3]uint64{0x1c, 0x2a, 0x2b},
			Selection:     0,
			Outcome:       layout.OutcomeLost,
		},
	}}

	journalService := newJournal(t, fetcher)

	won := orchestrator.Settlement{
		Signature:     solana.Signature{1},
		Owner:         owner,
		BattleAddress: wonAddress,
		Selection:     1,
		DNA:           [3]uint64{0x2a, 0x2b, 0x1c},
	}

	entry, err := journalService.HandleSettlement(context.Background(), won)
	require.NoError(t, err)
	require.NotNil(t, entry.Battle)
	assert.True(t, entry.Battle.Won())

	// recording the same battle twice does not count it twice
	_, err = journalService.HandleSettlement(context.Background(), won)
	require.NoError(t, err)

	_, err = journalService.HandleSettlement(context.Background(), orchestrator.Settlement{
		Signature:     solana.Signature{2},
		Owner:         owner,
		BattleAddress: lostAddress,
	})
	require.NoError(t, err)

	tally, err := journalService.Tally(owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.Wins)
	assert.Equal(t, int64(1), tally.Losses)

	found, err := journalService.Lookup(solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, wonAddress, found.Settlement.BattleAddress)
	assert.Equal(t, layout.OutcomeWon, found.Battle.Outcome)
	assert.Equal(t, uint64(0x2b), found.Battle.Chosen())

	byAddress, err := journalService.Get(lostAddress)
	require.NoError(t, err)
	assert.Equal(t, layout.OutcomeLost, byAddress.Battle.Outcome)

	entries, err := journalService.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReplayAfterUnreadableAccountCountsOnce(t *testing.T) {
	t.Parallel()

	owner := solana.NewWallet().PublicKey()
	battleAddress := solana.NewWallet().PublicKey()

	fetcher := &fakeFetcher{battles: map[solana.PublicKey]*layout.Battle{
		battleAddress: {Owner: owner, Outcome: layout.OutcomeWon},
	}}
	journalService := newJournal(t, fetcher)

	settlement := orchestrator.Settlement{
		Signature:     solana.Signature{4},
		Owner:         owner,
		BattleAddress: battleAddress,
	}

	_, err := journalService.HandleSettlement(context.Background(), settlement)
	require.NoError(t, err)

	fetcher.err = orchestrator.ErrLedgerUnavailable

	entry, err := journalService.HandleSettlement(context.Background(), settlement)
	require.NoError(t, err)
	require.NotNil(t, entry.Battle)
	assert.True(t, entry.Battle.Won())

	fetcher.err = nil

	_, err = journalService.HandleSettlement(context.Background(), settlement)
	require.NoError(t, err)

	tally, err := journalService.Tally(owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally.Wins)
	assert.Zero(t, tally.Losses)

	stored, err := journalService.Get(battleAddress)
	require.NoError(t, err)
	require.NotNil(t, stored.Battle)
}

func TestHandleSettlementWithoutAccount(t *testing.T) {
	t.Parallel()

	owner := solana.NewWallet().PublicKey()
	journalService := newJournal(t, &fakeFetcher{})

	entry, err := journalService.HandleSettlement(context.Background(), orchestrator.Settlement{
		Signature:     solana.Signature{9},
		Owner:         owner,
		BattleAddress: solana.NewWallet().PublicKey(),
	})
	require.NoError(t, err)
	assert.Nil(t, entry.Battle)

	tally, err := journalService.Tally(owner)
	require.NoError(t, err)
	assert.Zero(t, tally.Wins)
	assert.Zero(t, tally.Losses)
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()

	journalService := newJournal(t, &fakeFetcher{})

	_, err := journalService.Lookup(solana.Signature{7})
	require.ErrorIs(t, err, journal.ErrEntryNotFound)

	_, err = journalService.Get(solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, journal.ErrEntryNotFound)
}

func TestProcessSettlements(t *testing.T) {
	t.Parallel()

	owner := solana.NewWallet().PublicKey()
	battleAddress := solana.NewWallet().PublicKey()

	journalService := newJournal(t, &fakeFetcher{battles: map[solana.PublicKey]*layout.Battle{
		battleAddress: {Owner: owner, Outcome: layout.OutcomeWon},
	}})

	source := make(chan orchestrator.Settlement, 1)
	journalService.SettlementSource = source
	journalService.Start()

	source <- orchestrator.Settlement{
		Signature:     solana.Signature{5},
		Owner:         owner,
		BattleAddress: battleAddress,
	}
	close(source)

	assert.Eventually(t, func() bool {
		tally, err := journalService.Tally(owner)

		return err == nil && tally.Wins == 1
	}, testTimeout, testTick)
}
