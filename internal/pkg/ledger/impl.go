package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/samber/do/v2"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/orchestrator"
	"go.uber.org/zap"
)

const DefaultPollInterval = 500 * time.Millisecond

// preflightFailure is the JSON-RPC error code a node answers with when
// sendTransaction fails its preflight simulation.
const preflightFailure = -32002

var (
	ErrMissingStatus = errors.New("signature status missing")
	ErrEmptyResult   = errors.New("node returned no result")
)

// LedgerService talks JSON-RPC to a cluster node.
type LedgerService struct {
	Client *rpc.Client
	Logger *zap.Logger

	Commitment   rpc.CommitmentType
	PollInterval time.Duration
}

func NewLedgerService(i do.Injector) (*LedgerService, error) {
	rpcURL := do.MustInvokeNamed[string](i, "rpc-url")
	pollInterval := do.MustInvokeNamed[time.Duration](i, "poll-interval")
	loggerService := do.MustInvoke[*common.LoggerService](i)

	return NewLedger(rpcURL, pollInterval, loggerService.Logger.Named("ledger")), nil
}

func NewLedger(rpcURL string, pollInterval time.Duration, logger *zap.Logger) *LedgerService {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &LedgerService{
		Client: rpc.New(rpcURL),
		Logger: logger,

		Commitment:   rpc.CommitmentConfirmed,
		PollInterval: pollInterval,
	}
}

func (s *LedgerService) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := s.Client.GetLatestBlockhash(ctx, s.Commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	if out.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", rpc.ErrNotFound)
	}

	return out.Value.Blockhash, nil
}

func (s *LedgerService) Simulate(ctx context.Context, tx *solana.Transaction) (*orchestrator.Simulation, error) {
	//nolint:exhaustruct
	out, err := s.Client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  true,
		Commitment: s.Commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}

	if out.Value == nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", ErrEmptyResult)
	}

	return &orchestrator.Simulation{
		Err:  out.Value.Err,
		Logs: out.Value.Logs,
	}, nil
}

func (s *LedgerService) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	//nolint:exhaustruct
	signature, err := s.Client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.Commitment,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == preflightFailure {
			return solana.Signature{}, &orchestrator.PreflightError{
				Message: rpcErr.Message,
				Logs:    preflightLogs(rpcErr.Data),
			}
		}

		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signature, nil
}

func preflightLogs(data any) []string {
	fields, ok := data.(map[string]any)
	if !ok {
		return nil
	}

	values, ok := fields["logs"].([]any)
	if !ok {
		return nil
	}

	result := make([]string, 0, len(values))

	for _, value := range values {
		if line, ok := value.(string); ok {
			result = append(result, line)
		}
	}

	return result
}

// Confirm polls the signature status until the node reports confirmed or
// finalized commitment.
func (s *LedgerService) Confirm(ctx context.Context, signature solana.Signature) (*orchestrator.Confirmation, error) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		confirmation, err := s.status(ctx, signature)
		if err != nil {
			return nil, err
		}

		if confirmation != nil {
			return confirmation, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to confirm %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *LedgerService) status(ctx context.Context, signature solana.Signature) (*orchestrator.Confirmation, error) {
	out, err := s.Client.GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		// transient, keep polling until the deadline
		s.Logger.Debug("signature status unavailable", zap.Stringer("signature", signature), zap.Error(err))

		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to confirm %s: %w", signature, err)
		}

		return nil, nil //nolint:nilnil
	}

	if len(out.Value) == 0 {
		return nil, fmt.Errorf("failed to confirm %s: %w", signature, ErrMissingStatus)
	}

	status := out.Value[0]
	if status == nil {
		return nil, nil //nolint:nilnil
	}

	if status.Err != nil {
		return &orchestrator.Confirmation{Slot: status.Slot, Err: status.Err}, nil
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return &orchestrator.Confirmation{Slot: status.Slot}, nil
	case rpc.ConfirmationStatusProcessed:
	}

	return nil, nil //nolint:nilnil
}

func (s *LedgerService) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	//nolint:exhaustruct
	out, err := s.Client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: s.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, orchestrator.ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}

	if out.Value == nil || out.Value.Data == nil {
		return nil, orchestrator.ErrAccountNotFound
	}

	return out.Value.Data.GetBinary(), nil
}
