package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/samber/do/v2"
	"github.com/vreid/horde/internal/pkg/address"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/layout"
	"go.uber.org/zap"
)

const DefaultConfirmTimeout = 60 * time.Second

type OrchestratorService struct {
	Ledger  Ledger
	Signer  Signer
	Deriver *address.Deriver
	Logger  *zap.Logger

	ConfirmTimeout time.Duration

	SettlementSink chan<- Settlement
}

func NewOrchestratorService(i do.Injector) (*OrchestratorService, error) {
	ledger, err := do.InvokeAs[Ledger](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	signer, err := do.InvokeAs[Signer](i)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer: %w", err)
	}

	programID := do.MustInvokeNamed[solana.PublicKey](i, "program-id")
	confirmTimeout := do.MustInvokeNamed[time.Duration](i, "confirm-timeout")
	loggerService := do.MustInvoke[*common.LoggerService](i)

	// only the server consumes settlements
	settlementSink, err := do.InvokeNamed[chan<- Settlement](i, "settlement-sink")
	if err != nil {
		settlementSink = nil
	}

	return &OrchestratorService{
		Ledger:  ledger,
		Signer:  signer,
		Deriver: address.NewDeriver(programID),
		Logger:  loggerService.Logger.Named("orchestrator"),

		ConfirmTimeout: confirmTimeout,

		SettlementSink: settlementSink,
	}, nil
}

func (s *OrchestratorService) Owner() solana.PublicKey {
	return s.Signer.PublicKey()
}

func (s *OrchestratorService) ArmyAddress() (solana.PublicKey, error) {
	return s.Deriver.ArmyAddress(s.Signer.PublicKey())
}

func (s *OrchestratorService) SubmitInit(ctx context.Context) (*Receipt, error) {
	owner := s.Signer.PublicKey()

	army, err := s.Deriver.ArmyAddress(owner)
	if err != nil {
		return nil, err
	}

	instruction := solana.NewInstruction(
		s.Deriver.ProgramID(),
		solana.AccountMetaSlice{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(army, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		layout.EncodeInit(),
	)

	return s.execute(ctx, layout.OpInit, instruction, false)
}

func (s *OrchestratorService) SubmitBattle(ctx context.Context, request BattleRequest) (*Receipt, error) {
	battle, err := layout.NewBattleInstruction(request.ZombieID, request.Selection, request.DNA)
	if err != nil {
		return nil, err
	}

	data, err := battle.Encode()
	if err != nil {
		return nil, err
	}

	owner := s.Signer.PublicKey()

	battleAddress, err := s.Deriver.BattleAddress(owner, battle.DNA[0], battle.DNA[1], battle.DNA[2])
	if err != nil {
		return nil, err
	}

	army, err := s.Deriver.ArmyAddress(owner)
	if err != nil {
		return nil, err
	}

	instruction := solana.NewInstruction(
		s.Deriver.ProgramID(),
		solana.AccountMetaSlice{
			solana.NewAccountMeta(battleAddress, true, false),
			solana.NewAccountMeta(army, true, false),
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		data,
	)

	receipt, err := s.execute(ctx, layout.OpBattle, instruction, true)
	if err != nil {
		return receipt, err
	}

	receipt.Settlement = &Settlement{
		Signature:     receipt.Signature,
		Owner:         owner,
		BattleAddress: battleAddress,
		ZombieID:      battle.ZombieID,
		Selection:     battle.Selection,
		DNA:           battle.DNA,
		Slot:          receipt.Slot,
	}

	if s.SettlementSink != nil {
		select {
		case s.SettlementSink <- *receipt.Settlement:
		case <-ctx.Done():
			s.Logger.Warn("settlement dropped", zap.String("flow", receipt.FlowID), zap.Error(ctx.Err()))
		}
	}

	return receipt, nil
}

func (s *OrchestratorService) SubmitRemove(ctx context.Context, zombieID int) (*Receipt, error) {
	remove, err := layout.NewRemoveInstruction(zombieID)
	if err != nil {
		return nil, err
	}

	data, err := remove.Encode()
	if err != nil {
		return nil, err
	}

	owner := s.Signer.PublicKey()

	army, err := s.Deriver.ArmyAddress(owner)
	if err != nil {
		return nil, err
	}

	instruction := solana.NewInstruction(
		s.Deriver.ProgramID(),
		solana.AccountMetaSlice{
			solana.NewAccountMeta(army, true, false),
			solana.NewAccountMeta(owner, true, true),
		},
		data,
	)

	return s.execute(ctx, layout.OpRemove, instruction, true)
}

// execute drives one instruction through blockhash, signing, the optional
// simulation, submission and confirmation. The returned receipt reflects the
// last stage reached, also on error.
//
//nolint:funlen
func (s *OrchestratorService) execute(
	ctx context.Context,
	op layout.Opcode,
	instruction solana.Instruction,
	simulate bool) (*Receipt, error) {
	flowID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow id: %w", err)
	}

	receipt := &Receipt{
		FlowID: flowID.String(),
		Op:     op,
		Stage:  StageBuilt,
	}

	log := s.Logger.With(zap.String("flow", receipt.FlowID), zap.Stringer("op", op))

	blockhash, err := s.Ledger.LatestBlockhash(ctx)
	if err != nil {
		return receipt, fmt.Errorf("%w: failed to fetch blockhash: %w", ErrLedgerUnavailable, err)
	}

	owner := s.Signer.PublicKey()

	tx, err := solana.NewTransaction([]solana.Instruction{instruction}, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return receipt, fmt.Errorf("failed to build transaction: %w", err)
	}

	err = s.Signer.Sign(tx)
	if err != nil {
		return receipt, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if len(tx.Signatures) > 0 {
		receipt.Signature = tx.Signatures[0]
	}

	log.Debug("transaction built", zap.Stringer("blockhash", blockhash))

	if simulate {
		simulation, err := s.Ledger.Simulate(ctx, tx)
		if err != nil {
			return receipt, fmt.Errorf("%w: failed to simulate: %w", ErrLedgerUnavailable, err)
		}

		receipt.SimulationLogs = simulation.Logs

		for _, line := range simulation.Logs {
			log.Debug("simulation", zap.String("log", line))
		}

		if simulation.Err != nil {
			receipt.Stage = StageSimulationFailed

			perr := newProgramError(ErrSimulationRejected, receipt.Stage, describe(simulation.Err), simulation.Logs)
			log.Warn("simulation rejected", zap.Error(perr))

			return receipt, perr
		}

		receipt.Stage = StageSimulated
	}

	signature, err := s.Ledger.Submit(ctx, tx)

	var preflight *PreflightError
	if errors.As(err, &preflight) {
		receipt.Stage = StageSimulationFailed
		receipt.SimulationLogs = preflight.Logs

		perr := newProgramError(ErrSimulationRejected, receipt.Stage, preflight.Message, preflight.Logs)
		perr.cause = err
		log.Warn("preflight rejected", zap.Error(perr))

		return receipt, perr
	}

	if err != nil {
		perr := newProgramError(ErrSubmissionFailed, receipt.Stage, err.Error(), nil)
		perr.cause = err
		log.Error("submission failed", zap.Stringer("signature", receipt.Signature), zap.Error(perr))

		return receipt, perr
	}

	receipt.Signature = signature
	receipt.Stage = StageSubmitted

	log.Info("transaction submitted", zap.Stringer("signature", signature))

	confirmCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout())
	defer cancel()

	confirmation, err := s.Ledger.Confirm(confirmCtx, signature)
	if err != nil {
		log.Warn("transaction unconfirmed", zap.Stringer("signature", signature), zap.Error(err))

		return receipt, fmt.Errorf("%w: %s: %w", ErrUnconfirmed, signature, err)
	}

	receipt.Slot = confirmation.Slot

	if confirmation.Err != nil {
		receipt.Stage = StageFailed

		perr := newProgramError(ErrTransactionFailed, receipt.Stage, describe(confirmation.Err), nil)
		log.Warn("transaction failed", zap.Stringer("signature", signature), zap.Error(perr))

		return receipt, perr
	}

	receipt.Stage = StageConfirmed

	log.Info("transaction confirmed", zap.Stringer("signature", signature), zap.Uint64("slot", confirmation.Slot))

	return receipt, nil
}

func (s *OrchestratorService) confirmTimeout() time.Duration {
	if s.ConfirmTimeout <= 0 {
		return DefaultConfirmTimeout
	}

	return s.ConfirmTimeout
}

func (s *OrchestratorService) FetchArmy(ctx context.Context, owner solana.PublicKey) (*layout.Army, error) {
	army, err := s.Deriver.ArmyAddress(owner)
	if err != nil {
		return nil, err
	}

	return s.FetchArmyAt(ctx, army)
}

func (s *OrchestratorService) FetchArmyAt(ctx context.Context, account solana.PublicKey) (*layout.Army, error) {
	data, err := s.accountData(ctx, account)
	if err != nil {
		return nil, err
	}

	army, err := layout.DecodeArmy(data)
	if err != nil {
		return nil, fmt.Errorf("army %s: %w", account, err)
	}

	return army, nil
}

func (s *OrchestratorService) FetchBattle(ctx context.Context, account solana.PublicKey) (*layout.Battle, error) {
	data, err := s.accountData(ctx, account)
	if err != nil {
		return nil, err
	}

	battle, err := layout.DecodeBattle(data)
	if err != nil {
		return nil, fmt.Errorf("battle %s: %w", account, err)
	}

	return battle, nil
}

func (s *OrchestratorService) accountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	data, err := s.Ledger.AccountData(ctx, account)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %w", ErrLedgerUnavailable, account, err)
	}

	return data, nil
}
