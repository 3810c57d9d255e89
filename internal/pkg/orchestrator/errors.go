package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vreid/horde/internal/pkg/address"
	"github.com/vreid/horde/internal/pkg/layout"
)

var (
	ErrAccountNotFound = errors.New("account not found")

	// nothing was sent, safe to retry
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrSimulationRejected = errors.New("simulation rejected")

	// the transaction may or may not land, re-read account state
	ErrSubmissionFailed = errors.New("submission failed")
	ErrUnconfirmed      = errors.New("transaction unconfirmed")

	ErrTransactionFailed = errors.New("transaction failed")
)

// PreflightError is returned by a Ledger when the node refused the
// transaction in its own preflight simulation and never forwarded it.
type PreflightError struct {
	Message string
	Logs    []string
}

func (e *PreflightError) Error() string {
	return e.Message
}

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindDerivation
	KindLedgerUnavailable
	KindSimulationRejected
	KindSubmissionFailed
	KindUnconfirmed
	KindTransactionFailed
	KindDecode
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindValidation:
		return "validation"
	case KindDerivation:
		return "derivation"
	case KindLedgerUnavailable:
		return "ledger-unavailable"
	case KindSimulationRejected:
		return "simulation-rejected"
	case KindSubmissionFailed:
		return "submission-failed"
	case KindUnconfirmed:
		return "unconfirmed"
	case KindTransactionFailed:
		return "transaction-failed"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not-found"
	}

	return "unknown"
}

// Ambiguous reports whether a transaction may have landed despite the error.
func (k Kind) Ambiguous() bool {
	return k == KindSubmissionFailed || k == KindUnconfirmed
}

//nolint:cyclop
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, layout.ErrValidation):
		return KindValidation
	case errors.Is(err, address.ErrDerivation):
		return KindDerivation
	case errors.Is(err, ErrLedgerUnavailable):
		return KindLedgerUnavailable
	case errors.Is(err, ErrSimulationRejected):
		return KindSimulationRejected
	case errors.Is(err, ErrSubmissionFailed):
		return KindSubmissionFailed
	case errors.Is(err, ErrUnconfirmed):
		return KindUnconfirmed
	case errors.Is(err, ErrTransactionFailed):
		return KindTransactionFailed
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, layout.ErrDecode):
		return KindDecode
	}

	return KindUnknown
}

// ErrorCode is a custom error code raised by the game program.
type ErrorCode uint32

const (
	CodeInvalidZombieID ErrorCode = iota
	CodeZombieNotReady
	CodeInvalidDNA
	CodeInvalidSelection
	CodeArmyFull
	CodeInsufficientXP
	CodeInvalidBattleOutcome
	CodeBattleInProgress
	CodeUnauthorized
	CodeArithmeticOverflow
	CodeNoEmptySlot
)

var codeNames = map[ErrorCode]string{ //nolint:gochecknoglobals
	CodeInvalidZombieID:      "Invalid zombie ID",
	CodeZombieNotReady:       "Zombie is not ready to fight",
	CodeInvalidDNA:           "Invalid DNA value",
	CodeInvalidSelection:     "Invalid selection",
	CodeArmyFull:             "Army is full",
	CodeInsufficientXP:       "Insufficient XP",
	CodeInvalidBattleOutcome: "Invalid battle outcome",
	CodeBattleInProgress:     "Battle already in progress",
	CodeUnauthorized:         "Unauthorized access",
	CodeArithmeticOverflow:   "Arithmetic overflow",
	CodeNoEmptySlot:          "You have reach your army limit",
}

func (c ErrorCode) String() string {
	name, ok := codeNames[c]
	if !ok {
		return fmt.Sprintf("program error 0x%x", uint32(c))
	}

	return name
}

// ProgramError carries the node's diagnostic verbatim.
type ProgramError struct {
	Stage   Stage
	Message string
	Logs    []string

	Code    ErrorCode
	HasCode bool

	kind  error
	cause error
}

func (e *ProgramError) Error() string {
	if e.HasCode {
		return fmt.Sprintf("%v (%s): %s", e.kind, e.Code, e.Message)
	}

	return fmt.Sprintf("%v: %s", e.kind, e.Message)
}

func (e *ProgramError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}

	return []error{e.kind, e.cause}
}

var (
	customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)
	customValuePattern = regexp.MustCompile(`"Custom":\s*(\d+)`)
)

func newProgramError(kind error, stage Stage, message string, logs []string) *ProgramError {
	result := &ProgramError{
		Stage:   stage,
		Message: message,
		Logs:    logs,
		kind:    kind,
	}

	for _, text := range append([]string{message}, logs...) {
		code, ok := parseCode(text)
		if ok {
			result.Code = code
			result.HasCode = true

			break
		}
	}

	return result
}

func parseCode(text string) (ErrorCode, bool) {
	if m := customErrorPattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseUint(m[1], 16, 32)
		if err == nil {
			return ErrorCode(v), true
		}
	}

	if m := customValuePattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseUint(m[1], 10, 32)
		if err == nil {
			return ErrorCode(v), true
		}
	}

	return 0, false
}

// describe renders an execution error reported by the node as JSON,
// the way the node sent it.
func describe(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(data)
}

// AsProgramError returns the program code carried by err, if any.
func AsProgramError(err error) (*ProgramError, bool) {
	var perr *ProgramError
	if errors.As(err, &perr) {
		return perr, true
	}

	return nil, false
}
