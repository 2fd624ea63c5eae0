package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/drama"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/game"
	appLogger "github.com/SparxCinTech/InteractiveStoryGame/internal/logger"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/narrative"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/savestore"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := appLogger.New(appLogger.Config{
		Level:    "warn", // keep the terminal clean during play
		Encoding: "console",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	gameCfg, err := config.LoadGameConfig(cfg.GameConfigPath)
	if err != nil {
		fmt.Printf("Failed to load game config: %v\n", err)
		os.Exit(1)
	}

	aiClient, err := ai.NewClient(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to create AI client: %v\n", err)
		os.Exit(1)
	}
	if checker, ok := aiClient.(ai.AvailabilityChecker); ok {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if !checker.CheckAvailability(probeCtx) {
			fmt.Printf("Warning: model '%s' is not reachable at %s, the story will use fallbacks.\n",
				cfg.AIModel, cfg.AIBaseURL)
		}
		probeCancel()
	}
	params := ai.Params(cfg)

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	backend, closeBackend, err := savestore.FromConfig(setupCtx, cfg, logger)
	setupCancel()
	if err != nil {
		fmt.Printf("Failed to initialize save backend: %v\n", err)
		os.Exit(1)
	}
	defer closeBackend()
	store := savestore.New(backend)

	provider := prompts.NewProvider(gameCfg.Templates, logger.Named("PromptProvider"))
	analyzer := drama.NewAnalyzer(aiClient, provider, params, logger.Named("DramaAnalyzer"))
	engine := narrative.NewEngine(aiClient, provider, analyzer, params,
		gameCfg.Settings.MaxChoices, gameCfg.Fallback.Development(), logger.Named("NarrativeEngine"))
	session := game.NewSession(gameCfg, aiClient, provider, params, engine, store, logger.Named("GameSession"))

	run(session, logger)
}

func run(session *game.Session, logger *zap.Logger) {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("=== Interactive Story ===")
	fmt.Println(session.Situation())
	printHelp()

	for {
		batch := session.Developments(ctx)
		fmt.Println("\nWhat happens next?")
		for i, dev := range batch.Developments {
			fmt.Printf("  %d. %s\n", i+1, dev.Description)
		}
		fmt.Print("\n> ")

		if !scanner.Scan() {
			exitWithAutosave(ctx, session)
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		fields := strings.Fields(input)
		switch fields[0] {
		case "exit", "quit":
			exitWithAutosave(ctx, session)
			return

		case "help":
			printHelp()

		case "custom":
			text := strings.TrimSpace(strings.TrimPrefix(input, "custom"))
			if text == "" {
				fmt.Println("Usage: custom <what you do>")
				continue
			}
			result, err := session.ChooseCustom(ctx, text)
			if err != nil {
				fmt.Printf("Something went wrong: %v\n", err)
				continue
			}
			printTurn(session, result)

		case "save":
			saveID, err := session.SaveGame(ctx, nil)
			if err != nil {
				fmt.Printf("Save failed: %v\n", err)
				continue
			}
			fmt.Printf("Saved as %s\n", saveID)

		case "load":
			if len(fields) < 2 {
				fmt.Println("Usage: load <save id>")
				continue
			}
			if err := session.LoadGame(ctx, fields[1]); err != nil {
				fmt.Printf("Load failed: %v\n", err)
				continue
			}
			fmt.Println("Game loaded.")
			fmt.Println(session.Situation())

		case "quicksave", "qs":
			saveID, err := session.QuickSave(ctx, 0)
			if err != nil {
				fmt.Printf("Quicksave failed: %v\n", err)
				continue
			}
			fmt.Printf("Quicksaved (%s)\n", saveID)

		case "quickload", "ql":
			if err := session.QuickLoad(ctx, 0); err != nil {
				fmt.Printf("Quickload failed: %v\n", err)
				continue
			}
			fmt.Println("Quicksave loaded.")
			fmt.Println(session.Situation())

		case "saves":
			saves, err := session.ListSaves(ctx)
			if err != nil {
				fmt.Printf("Could not list saves: %v\n", err)
				continue
			}
			if len(saves) == 0 {
				fmt.Println("No saves yet.")
				continue
			}
			for id, summary := range saves {
				fmt.Printf("  %s  %s\n", id, summary.Timestamp.Format("2006-01-02 15:04"))
			}

		default:
			index, err := strconv.Atoi(fields[0])
			if err != nil {
				fmt.Println("Pick a number, or type 'help' for commands.")
				continue
			}
			result, err := session.Choose(ctx, index-1)
			if err != nil {
				fmt.Printf("Something went wrong: %v\n", err)
				continue
			}
			printTurn(session, result)
		}
	}
}

func printTurn(session *game.Session, result *game.TurnResult) {
	fmt.Println()
	fmt.Println(result.Development.Description)
	for _, line := range result.Responses {
		fmt.Printf("\n%s:\n  %s\n", line.Character, line.Text)
	}
	fmt.Printf("\n[%s]\n", session.Situation())
	if result.AutosaveID != "" {
		fmt.Printf("(autosaved: %s)\n", result.AutosaveID)
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  <number>        choose a development
  custom <text>   write your own action
  save            save the game
  load <id>       load a save
  saves           list saves
  quicksave / qs  quicksave
  quickload / ql  load the quicksave
  exit            autosave and quit`)
}

func exitWithAutosave(ctx context.Context, session *game.Session) {
	saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if saveID, err := session.Autosave(saveCtx); err == nil {
		fmt.Printf("Autosaved as %s. Playtime %s. Goodbye!\n", saveID, session.Playtime())
	} else {
		fmt.Printf("Autosave failed: %v\n", err)
	}
}
