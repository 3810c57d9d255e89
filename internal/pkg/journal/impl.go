package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/do/v2"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const fetchTimeout = 30 * time.Second

var (
	ErrBucketNotFound = errors.New("journal bucket doesn't exist")
	ErrEntryNotFound  = errors.New("journal entry not found")
)

type BattleFetcher interface {
	FetchBattle(ctx context.Context, account solana.PublicKey) (*layout.Battle, error)
}

type JournalService struct {
	DatabaseService *common.DatabaseService
	Fetcher         BattleFetcher
	Logger          *zap.Logger

	SettlementSource <-chan orchestrator.Settlement
}

func NewJournalService(i do.Injector) (*JournalService, error) {
	databaseService := do.MustInvoke[*common.DatabaseService](i)
	orchestratorService := do.MustInvoke[*orchestrator.OrchestratorService](i)
	loggerService := do.MustInvoke[*common.LoggerService](i)

	// the CLI records synchronously and provides no source
	settlementSource, err := do.InvokeNamed[<-chan orchestrator.Settlement](i, "settlement-source")
	if err != nil {
		settlementSource = nil
	}

	return &JournalService{
		DatabaseService: databaseService,
		Fetcher:         orchestratorService,
		Logger:          loggerService.Logger.Named("journal"),

		SettlementSource: settlementSource,
	}, nil
}

func (s *JournalService) Start() {
	if s.SettlementSource == nil {
		return
	}

	go s.processSettlements()
}

func (s *JournalService) processSettlements() {
	for settlement := range s.SettlementSource {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)

		_, err := s.HandleSettlement(ctx, settlement)
		if err != nil {
			s.Logger.Error("failed to record settlement",
				zap.Stringer("signature", settlement.Signature),
				zap.Error(err))
		}

		cancel()
	}
}

// HandleSettlement reads the battle account back and records it. The wins
// and losses of the owner are counted once per battle.
//
//nolint:cyclop,funlen
func (s *JournalService) HandleSettlement(ctx context.Context, settlement orchestrator.Settlement) (*Entry, error) {
	entry := &Entry{
		Settlement: settlement,
		RecordedAt: time.Now().UTC(),
	}

	battle, err := s.Fetcher.FetchBattle(ctx, settlement.BattleAddress)
	if err != nil {
		s.Logger.Warn("battle account unreadable",
			zap.Stringer("battle", settlement.BattleAddress),
			zap.Error(err))
	} else {
		entry.Battle = battle
	}

	err = s.DatabaseService.DB.Update(func(tx *bbolt.Tx) error {
		battles := tx.Bucket([]byte(common.JournalBattlesBucket))
		signatures := tx.Bucket([]byte(common.JournalSignaturesBucket))
		wins := tx.Bucket([]byte(common.JournalWinsBucket))
		losses := tx.Bucket([]byte(common.JournalLossesBucket))

		if battles == nil || signatures == nil || wins == nil || losses == nil {
			return ErrBucketNotFound
		}

		key := settlement.BattleAddress.Bytes()

		counted := false

		if previous := battles.Get(key); previous != nil {
			var existing Entry

			err := json.Unmarshal(previous, &existing)
			if err == nil && existing.Battle != nil {
				counted = true

				// an unreadable account on replay keeps what was recorded
				if entry.Battle == nil {
					entry.Battle = existing.Battle
				}
			}
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal journal entry: %w", err)
		}

		err = battles.Put(key, data)
		if err != nil {
			return fmt.Errorf("failed to put battle: %w", err)
		}

		err = signatures.Put(settlement.Signature[:], key)
		if err != nil {
			return fmt.Errorf("failed to put signature: %w", err)
		}

		if entry.Battle == nil || counted {
			return nil
		}

		counter := losses
		if entry.Battle.Won() {
			counter = wins
		}

		owner := settlement.Owner.Bytes()
		count := common.BytesToInt64(counter.Get(owner), 0)

		err = counter.Put(owner, common.Int64ToBytes(count+1))
		if err != nil {
			return fmt.Errorf("failed to put tally: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record battle: %w", err)
	}

	return entry, nil
}

func (s *JournalService) Get(battleAddress solana.PublicKey) (*Entry, error) {
	var entry *Entry

	err := s.DatabaseService.DB.View(func(tx *bbolt.Tx) error {
		battles := tx.Bucket([]byte(common.JournalBattlesBucket))
		if battles == nil {
			return ErrBucketNotFound
		}

		var err error

		entry, err = decodeEntry(battles.Get(battleAddress.Bytes()))

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("battle %s: %w", battleAddress, err)
	}

	return entry, nil
}

func (s *JournalService) Lookup(signature solana.Signature) (*Entry, error) {
	var entry *Entry

	err := s.DatabaseService.DB.View(func(tx *bbolt.Tx) error {
		battles := tx.Bucket([]byte(common.JournalBattlesBucket))
		signatures := tx.Bucket([]byte(common.JournalSignaturesBucket))

		if battles == nil || signatures == nil {
			return ErrBucketNotFound
		}

		key := signatures.Get(signature[:])
		if key == nil {
			return ErrEntryNotFound
		}

		var err error

		entry, err = decodeEntry(battles.Get(key))

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", signature, err)
	}

	return entry, nil
}

func (s *JournalService) List() ([]Entry, error) {
	result := []Entry{}

	err := s.DatabaseService.DB.View(func(tx *bbolt.Tx) error {
		battles := tx.Bucket([]byte(common.JournalBattlesBucket))
		if battles == nil {
			return ErrBucketNotFound
		}

		return battles.ForEach(func(_, v []byte) error {
			entry, err := decodeEntry(v)
			if err != nil {
				return err
			}

			result = append(result, *entry)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}

	return result, nil
}

func (s *JournalService) Tally(owner solana.PublicKey) (Tally, error) {
	result := Tally{Owner: owner}

	err := s.DatabaseService.DB.View(func(tx *bbolt.Tx) error {
		wins := tx.Bucket([]byte(common.JournalWinsBucket))
		losses := tx.Bucket([]byte(common.JournalLossesBucket))

		if wins == nil || losses == nil {
			return ErrBucketNotFound
		}

		result.Wins = common.BytesToInt64(wins.Get(owner.Bytes()), 0)
		result.Losses = common.BytesToInt64(losses.Get(owner.Bytes()), 0)

		return nil
	})
	if err != nil {
		return Tally{}, fmt.Errorf("failed to read tally: %w", err)
	}

	return result, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	if data == nil {
		return nil, ErrEntryNotFound
	}

	var entry Entry

	err := json.Unmarshal(data, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal entry: %w", err)
	}

	return &entry, nil
}
