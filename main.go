package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/do/v2"
	"github.com/vreid/horde/internal/pkg/arena"
	"github.com/vreid/horde/internal/pkg/common"
	"github.com/vreid/horde/internal/pkg/dna"
	"github.com/vreid/horde/internal/pkg/journal"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/ledger"
	"github.com/vreid/horde/internal/pkg/orchestrator"

	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

type HordeService struct {
	EchoService *common.EchoService `do:""`

	ArenaService   *arena.ArenaService     `do:""`
	JournalService *journal.JournalService `do:""`
}

func newInjector(cmd *cli.Command) (do.Injector, error) {
	programID, err := solana.PublicKeyFromBase58(cmd.String("program-id"))
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	i := do.New()

	do.ProvideNamedValue(i, "program-id", programID)
	do.ProvideNamedValue(i, "rpc-url", cmd.String("rpc-url"))
	do.ProvideNamedValue(i, "keypair", cmd.String("keypair"))
	do.ProvideNamedValue(i, "data-dir", cmd.String("data-dir"))
	do.ProvideNamedValue(i, "log-level", cmd.String("log-level"))
	do.ProvideNamedValue(i, "log-file", cmd.String("log-file"))
	do.ProvideNamedValue(i, "confirm-timeout", cmd.Duration("confirm-timeout"))
	do.ProvideNamedValue(i, "poll-interval", cmd.Duration("poll-interval"))

	do.Provide(i, common.NewLoggerService)
	do.Provide(i, common.NewDatabaseService)

	do.Provide(i, ledger.NewLedgerService)
	do.Provide(i, ledger.NewKeypairSignerService)

	do.Provide(i, orchestrator.NewOrchestratorService)
	do.Provide(i, journal.NewJournalService)

	return i, nil
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	i, err := newInjector(cmd)
	if err != nil {
		return err
	}

	defer i.Shutdown()

	do.ProvideNamedValue(i, "port", cmd.Int("port"))

	settlementChan := make(chan orchestrator.Settlement, 1000)
	var settlementSource <-chan orchestrator.Settlement = settlementChan
	var settlementSink chan<- orchestrator.Settlement = settlementChan

	do.ProvideNamedValue(i, "settlement-source", settlementSource)
	do.ProvideNamedValue(i, "settlement-sink", settlementSink)

	do.Provide(i, common.NewEchoService)
	do.Provide(i, arena.NewArenaService)

	do.Provide(i, do.InvokeStruct[HordeService])

	hordeService, err := do.Invoke[HordeService](i)
	if err != nil {
		return fmt.Errorf("failed to create horde service: %w", err)
	}

	hordeService.JournalService.Start()

	errChan := make(chan error, 1)

	go func() {
		errChan <- hordeService.EchoService.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	//nolint:wrapcheck
	return hordeService.EchoService.Shutdown(shutdownCtx)
}

func withOrchestrator(
	action func(ctx context.Context, cmd *cli.Command, i do.Injector, o *orchestrator.OrchestratorService) error,
) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		i, err := newInjector(cmd)
		if err != nil {
			return err
		}

		defer i.Shutdown()

		orchestratorService, err := do.Invoke[*orchestrator.OrchestratorService](i)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}

		return action(ctx, cmd, i, orchestratorService)
	}
}

func showArmy(ctx context.Context, cmd *cli.Command, _ do.Injector, o *orchestrator.OrchestratorService) error {
	army, err := o.FetchArmy(ctx, o.Owner())
	if errors.Is(err, orchestrator.ErrAccountNotFound) && cmd.Bool("init-if-missing") {
		fmt.Println("Army account not found. Creating one...")

		receipt, err := o.SubmitInit(ctx)
		if err != nil {
			return explain(err)
		}

		printReceipt(os.Stdout, receipt)

		army, err = o.FetchArmy(ctx, o.Owner())
		if err != nil {
			return explain(err)
		}
	} else if err != nil {
		return explain(err)
	}

	printArmy(os.Stdout, army, time.Now())

	return nil
}

func initArmy(ctx context.Context, _ *cli.Command, _ do.Injector, o *orchestrator.OrchestratorService) error {
	receipt, err := o.SubmitInit(ctx)
	if err != nil {
		return explain(err)
	}

	printReceipt(os.Stdout, receipt)

	return nil
}

func battle(ctx context.Context, cmd *cli.Command, i do.Injector, o *orchestrator.OrchestratorService) error {
	request := orchestrator.BattleRequest{
		ZombieID:  cmd.Int("zombie-id"),
		Selection: cmd.Int("selection"),
		DNA:       dna.NewGenerator(nil).MatchUp(),
	}

	if values := cmd.StringSlice("dna"); len(values) > 0 {
		if len(values) != layout.MaxCards {
			return fmt.Errorf("%w: want %d --dna values, got %d", layout.ErrValidation, layout.MaxCards, len(values))
		}

		for idx, value := range values {
			parsed, err := strconv.ParseUint(value, 0, 64)
			if err != nil {
				return fmt.Errorf("%w: dna %q: %w", layout.ErrValidation, value, err)
			}

			request.DNA[idx] = parsed
		}
	}

	fmt.Println("Initiating battle...")

	receipt, err := o.SubmitBattle(ctx, request)
	if err != nil {
		return explain(err)
	}

	printReceipt(os.Stdout, receipt)

	journalService, err := do.Invoke[*journal.JournalService](i)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	entry, err := journalService.HandleSettlement(ctx, *receipt.Settlement)
	if err != nil {
		return fmt.Errorf("failed to record battle: %w", err)
	}

	printEntry(os.Stdout, entry)

	return nil
}

func removeZombie(ctx context.Context, cmd *cli.Command, _ do.Injector, o *orchestrator.OrchestratorService) error {
	zombieID, err := strconv.Atoi(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("%w: zombie id %q", layout.ErrValidation, cmd.Args().First())
	}

	receipt, err := o.SubmitRemove(ctx, zombieID)
	if err != nil {
		return explain(err)
	}

	printReceipt(os.Stdout, receipt)
	fmt.Printf("Zombie %d has been removed.\n", zombieID)

	return nil
}

func showJournal(_ context.Context, cmd *cli.Command, i do.Injector, o *orchestrator.OrchestratorService) error {
	journalService, err := do.Invoke[*journal.JournalService](i)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	if cmd.Args().Present() {
		signature, err := solana.SignatureFromBase58(cmd.Args().First())
		if err != nil {
			return fmt.Errorf("invalid signature: %w", err)
		}

		entry, err := journalService.Lookup(signature)
		if err != nil {
			return fmt.Errorf("failed to look up battle: %w", err)
		}

		printEntry(os.Stdout, entry)

		return nil
	}

	entries, err := journalService.List()
	if err != nil {
		return fmt.Errorf("failed to list battles: %w", err)
	}

	tally, err := journalService.Tally(o.Owner())
	if err != nil {
		return fmt.Errorf("failed to read tally: %w", err)
	}

	printJournal(os.Stdout, entries, tally)

	return nil
}

//nolint:funlen
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//nolint:exhaustruct
	cmd := &cli.Command{
		Name:  "horde",
		Usage: "raise a zombie army on chain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Value:   "http://localhost:8899",
				Sources: cli.EnvVars("HORDE_RPC_URL"),
			},
			&cli.StringFlag{
				Name:    "program-id",
				Value:   "ES7xLKWwyjtnv1i43AqG8R73HjtS1jDYoZZaoLS9bPYL",
				Sources: cli.EnvVars("HORDE_PROGRAM_ID"),
			},
			&cli.StringFlag{
				Name:    "keypair",
				Value:   "~/.config/solana/id.json",
				Sources: cli.EnvVars("HORDE_KEYPAIR"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   "./horde/data",
				Sources: cli.EnvVars("HORDE_DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("HORDE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Value:   "",
				Sources: cli.EnvVars("HORDE_LOG_FILE"),
			},
			&cli.DurationFlag{
				Name:    "confirm-timeout",
				Value:   orchestrator.DefaultConfirmTimeout,
				Sources: cli.EnvVars("HORDE_CONFIRM_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Value:   ledger.DefaultPollInterval,
				Sources: cli.EnvVars("HORDE_POLL_INTERVAL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Value:   3000, //nolint:mnd
						Sources: cli.EnvVars("HORDE_PORT"),
					},
				},
				Action: runServer,
			},
			{
				Name: "army",
				Commands: []*cli.Command{
					{
						Name: "show",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name: "init-if-missing",
							},
						},
						Action: withOrchestrator(showArmy),
					},
					{
						Name:   "init",
						Action: withOrchestrator(initArmy),
					},
				},
			},
			{
				Name: "battle",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "zombie-id",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "selection",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "dna",
						Usage: "three combatant DNAs, a fresh match-up when omitted",
					},
				},
				Action: withOrchestrator(battle),
			},
			{
				Name:      "remove",
				ArgsUsage: "<zombie-id>",
				Action:    withOrchestrator(removeZombie),
			},
			{
				Name:      "journal",
				ArgsUsage: "[signature]",
				Action:    withOrchestrator(showJournal),
			},
		},
		DefaultCommand: "server",
	}

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
