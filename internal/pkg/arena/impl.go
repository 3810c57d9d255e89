package arena

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/samber/do/v2"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/dna"
	"github.com/vreid/horde/internal/pkg/journal"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
)

type Game interface {
	Owner() solana.PublicKey
	ArmyAddress() (solana.PublicKey, error)
	SubmitInit(ctx context.Context) (*orchestrator.Receipt, error)
	SubmitBattle(ctx context.Context, request orchestrator.BattleRequest) (*orchestrator.Receipt, error)
	SubmitRemove(ctx context.Context, zombieID int) (*orchestrator.Receipt, error)
	FetchArmy(ctx context.Context, owner solana.PublicKey) (*layout.Army, error)
	FetchBattle(ctx context.Context, account solana.PublicKey) (*layout.Battle, error)
}

type Journal interface {
	Lookup(signature solana.Signature) (*journal.Entry, error)
	List() ([]journal.Entry, error)
	Tally(owner solana.PublicKey) (journal.Tally, error)
}

type ArenaService struct {
	Game      Game
	Journal   Journal
	Generator *dna.Generator
}

func NewArenaService(i do.Injector) (*ArenaService, error) {
	orchestratorService, err := do.Invoke[*orchestrator.OrchestratorService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	journalService, err := do.Invoke[*journal.JournalService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	result := &ArenaService{
		Game:      orchestratorService,
		Journal:   journalService,
		Generator: dna.NewGenerator(nil),
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(result.Register)

	return result, nil
}

func (s *ArenaService) Register(e *echo.Echo) {
	apiGroup := e.Group("/api")

	arenaGroup := apiGroup.Group("/arena")
	arenaGroup.GET("/match-up", s.GetMatchUp)
	arenaGroup.POST("/battle", s.PostBattle)

	armyGroup := apiGroup.Group("/army")
	armyGroup.GET("", s.GetArmy)
	armyGroup.POST("", s.PostArmy)
	armyGroup.DELETE("/zombies/:id", s.DeleteZombie)

	apiGroup.GET("/battles/:address", s.GetBattle)

	journalGroup := apiGroup.Group("/journal")
	journalGroup.GET("", s.GetJournal)
	journalGroup.GET("/tally", s.GetTally)
	journalGroup.GET("/:signature", s.GetJournalEntry)
}

func (s *ArenaService) GetMatchUp(c echo.Context) error {
	//nolint:wrapcheck
	return c.JSONPretty(http.StatusOK, NewMatchUp(s.Generator.MatchUp()), "  ")
}

func (s *ArenaService) PostBattle(c echo.Context) error {
	var body BattleBody

	err := c.Bind(&body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if body.ZombieID == nil || body.Selection == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "zombie_id and selection are required")
	}

	request := orchestrator.BattleRequest{
		ZombieID:  *body.ZombieID,
		Selection: *body.Selection,
	}

	if body.DNA != nil {
		request.DNA = *body.DNA
	} else {
		request.DNA = s.Generator.MatchUp()
	}

	ctx := c.Request().Context()

	receipt, err := s.Game.SubmitBattle(ctx, request)
	if err != nil {
		return Problematic(c, err)
	}

	result := BattleResult{
		Receipt: receipt,
	}

	if receipt.Settlement != nil {
		battle, err := s.Game.FetchBattle(ctx, receipt.Settlement.BattleAddress)
		if err == nil {
			result.Battle = battle
		}
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, result)
}

func (s *ArenaService) GetArmy(c echo.Context) error {
	ctx := c.Request().Context()

	armyAddress, err := s.Game.ArmyAddress()
	if err != nil {
		return Problematic(c, err)
	}

	army, err := s.Game.FetchArmy(ctx, s.Game.Owner())
	if err != nil {
		return Problematic(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, ArmyView{
		Address:   armyAddress,
		Army:      army,
		Active:    army.Active(),
		FreeSlots: army.FreeSlots(),
	})
}

func (s *ArenaService) PostArmy(c echo.Context) error {
	receipt, err := s.Game.SubmitInit(c.Request().Context())
	if err != nil {
		return Problematic(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusCreated, receipt)
}

func (s *ArenaService) DeleteZombie(c echo.Context) error {
	zombieID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid zombie id")
	}

	receipt, err := s.Game.SubmitRemove(c.Request().Context(), zombieID)
	if err != nil {
		return Problematic(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, receipt)
}

func (s *ArenaService) GetBattle(c echo.Context) error {
	account, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid battle address")
	}

	battle, err := s.Game.FetchBattle(c.Request().Context(), account)
	if err != nil {
		return Problematic(c, err)
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, battle)
}

func (s *ArenaService) GetJournal(c echo.Context) error {
	entries, err := s.Journal.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read journal")
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, entries)
}

func (s *ArenaService) GetJournalEntry(c echo.Context) error {
	signature, err := solana.SignatureFromBase58(c.Param("signature"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	entry, err := s.Journal.Lookup(signature)
	if errors.Is(err, journal.ErrEntryNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no battle recorded for signature")
	}

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read journal")
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, entry)
}

func (s *ArenaService) GetTally(c echo.Context) error {
	tally, err := s.Journal.Tally(s.Game.Owner())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read tally")
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusOK, tally)
}

// Problematic renders a game error with its kind and, when the program
// raised one, its error code.
func Problematic(c echo.Context, err error) error {
	kind := orchestrator.Classify(err)

	problem := Problem{
		Kind:    kind.String(),
		Message: err.Error(),
	}

	if perr, ok := orchestrator.AsProgramError(err); ok {
		problem.Logs = perr.Logs

		if perr.HasCode {
			code := uint32(perr.Code)
			problem.Code = &code
			problem.Reason = perr.Code.String()
		}
	}

	//nolint:wrapcheck
	return c.JSON(StatusOf(kind), problem)
}

func StatusOf(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindValidation:
		return http.StatusBadRequest
	case orchestrator.KindNotFound:
		return http.StatusNotFound
	case orchestrator.KindSimulationRejected:
		return http.StatusConflict
	case orchestrator.KindTransactionFailed:
		return http.StatusUnprocessableEntity
	case orchestrator.KindSubmissionFailed, orchestrator.KindLedgerUnavailable:
		return http.StatusBadGateway
	case orchestrator.KindUnconfirmed:
		return http.StatusGatewayTimeout
	case orchestrator.KindUnknown, orchestrator.KindDerivation, orchestrator.KindDecode:
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}
