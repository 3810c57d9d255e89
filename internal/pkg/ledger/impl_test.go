package ledger_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/horde/internal/pkg/ledger"
	"github.com/vreid/horde/internal/pkg/orchestrator"
	"go.uber.org/zap/zaptest"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// node answers JSON-RPC calls from a table of canned results per method.
// A result prefixed with "error:" is sent as the JSON-RPC error object.
type node struct {
	mu      sync.Mutex
	results map[string][]string
	calls   map[string]int
}

func newNode(t *testing.T, results map[string][]string) (*node, *httptest.Server) {
	t.Helper()

	n := &node{
		results: results,
		calls:   map[string]int{},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request rpcRequest

		err := json.NewDecoder(r.Body).Decode(&request)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		n.mu.Lock()
		answers := n.results[request.Method]
		idx := n.calls[request.Method]
		n.calls[request.Method]++
		n.mu.Unlock()

		if len(answers) == 0 {
			http.Error(w, "unexpected method "+request.Method, http.StatusNotImplemented)

			return
		}

		result := answers[min(idx, len(answers)-1)]

		field := "result"
		if rpcErr, ok := strings.CutPrefix(result, "error:"); ok {
			field, result = "error", rpcErr
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(request.ID) + `,"` + field + `":` + result + `}`))
	}))

	t.Cleanup(server.Close)

	return n, server
}

func (n *node) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

func TestAccountDataAbsent(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"getAccountInfo": {`{"context":{"slot":1},"value":null}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	_, err := service.AccountData(context.Background(), solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, orchestrator.ErrAccountNotFound)
}

func TestAccountData(t *testing.T) {
	t.Parallel()

	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	encoded := base64.StdEncoding.EncodeToString(raw)

	_, server := newNode(t, map[string][]string{
		"getAccountInfo": {`{"context":{"slot":1},"value":{"data":["` + encoded + `","base64"],` +
			`"executable":false,"lamports":1000,"owner":"11111111111111111111111111111111","rentEpoch":0}}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	data, err := service.AccountData(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestLatestBlockhash(t *testing.T) {
	t.Parallel()

	hash := solana.Hash(solana.NewWallet().PublicKey())

	_, server := newNode(t, map[string][]string{
		"getLatestBlockhash": {`{"context":{"slot":1},"value":{"blockhash":"` + hash.String() + `","lastValidBlockHeight":100}}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	got, err := service.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestConfirmPollsUntilConfirmed(t *testing.T) {
	t.Parallel()

	n, server := newNode(t, map[string][]string{
		"getSignatureStatuses": {
			`{"context":{"slot":3},"value":[null]}`,
			`{"context":{"slot":4},"value":[{"slot":4,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`,
			`{"context":{"slot":5},"value":[{"slot":5,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`,
		},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	confirmation, err := service.Confirm(ctx, solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), confirmation.Slot)
	assert.Nil(t, confirmation.Err)
	assert.Equal(t, 3, n.count("getSignatureStatuses"))
}

func TestConfirmReportsExecutionError(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"getSignatureStatuses": {
			`{"context":{"slot":9},"value":[{"slot":9,"confirmations":null,"err":{"InstructionError":[0,{"Custom":1}]},` +
				`"confirmationStatus":"confirmed"}]}`,
		},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	confirmation, err := service.Confirm(context.Background(), solana.Signature{2})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), confirmation.Slot)
	assert.NotNil(t, confirmation.Err)
}

func TestConfirmGivesUpAtDeadline(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"getSignatureStatuses": {`{"context":{"slot":3},"value":[null]}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := service.Confirm(ctx, solana.Signature{3})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func signedTransaction(t *testing.T) *solana.Transaction {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := solana.NewTransaction([]solana.Instruction{
		solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
			solana.NewAccountMeta(key.PublicKey(), true, true),
		}, []byte{0}),
	}, solana.Hash{}, solana.TransactionPayer(key.PublicKey()))
	require.NoError(t, err)

	require.NoError(t, ledger.NewKeypairSigner(key).Sign(tx))

	return tx
}

func TestSimulate(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"simulateTransaction": {`{"context":{"slot":2},"value":{"err":{"InstructionError":[0,{"Custom":1}]},` +
			`"logs":["Program log: zombie resting"],"accounts":null,"unitsConsumed":100}}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	simulation, err := service.Simulate(context.Background(), signedTransaction(t))
	require.NoError(t, err)
	assert.NotNil(t, simulation.Err)
	assert.Equal(t, []string{"Program log: zombie resting"}, simulation.Logs)
}

func TestSimulateWithoutResultIsAnError(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"simulateTransaction": {`{"context":{"slot":2},"value":null}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	simulation, err := service.Simulate(context.Background(), signedTransaction(t))
	require.ErrorIs(t, err, ledger.ErrEmptyResult)
	assert.Nil(t, simulation)
}

func TestSubmitPreflightRejected(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"sendTransaction": {`error:{"code":-32002,"message":"Transaction simulation failed: ` +
			`Error processing Instruction 0: custom program error: 0x1","data":{"err":{"InstructionError":[0,{"Custom":1}]},` +
			`"logs":["Program log: zombie resting"]}}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	_, err := service.Submit(context.Background(), signedTransaction(t))

	var preflight *orchestrator.PreflightError
	require.ErrorAs(t, err, &preflight)
	assert.Contains(t, preflight.Message, "custom program error: 0x1")
	assert.Equal(t, []string{"Program log: zombie resting"}, preflight.Logs)
}

func TestSubmitOtherRPCErrorIsNotPreflight(t *testing.T) {
	t.Parallel()

	_, server := newNode(t, map[string][]string{
		"sendTransaction": {`error:{"code":-32005,"message":"Node is behind"}`},
	})

	service := ledger.NewLedger(server.URL, time.Millisecond, zaptest.NewLogger(t))

	_, err := service.Submit(context.Background(), signedTransaction(t))
	require.Error(t, err)

	var preflight *orchestrator.PreflightError
	assert.NotErrorAs(t, err, &preflight)
}

func TestLoadKeypair(t *testing.T) {
	t.Parallel()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	signer, err := ledger.LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), signer.PublicKey())

	_, err = ledger.LoadKeypair(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestKeypairSignerRejectsForeignTransaction(t *testing.T) {
	t.Parallel()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	payer := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction([]solana.Instruction{
		solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
		}, []byte{0}),
	}, solana.Hash{}, solana.TransactionPayer(payer))
	require.NoError(t, err)

	err = ledger.NewKeypairSigner(key).Sign(tx)
	require.ErrorIs(t, err, ledger.ErrSignerMissing)
}
