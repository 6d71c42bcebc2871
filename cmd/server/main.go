package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"maze-wars/internal/api"
	"maze-wars/internal/config"
	"maze-wars/internal/game"
	"maze-wars/internal/match"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🕹 ================================")
	log.Println("🕹  MAZE WARS - MATCH SERVER")
	log.Println("🕹 ================================")

	cfg := config.Load()

	level := cfg.Match.Level
	if level == 0 {
		level = promptLevel()
	}

	state := game.NewState()
	if err := state.SetLevel(level); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("🗺 level %d selected (%d spawn positions)", level, state.SpawnsLeft())

	var audit *game.AuditLog
	if cfg.Audit.Enabled {
		audit = game.NewAuditLog()
		if err := audit.Start(cfg.Audit.Path); err != nil {
			log.Printf("⚠️ audit trail disabled: %v", err)
			audit = nil
		} else {
			defer audit.Stop()
			log.Printf("📜 audit trail -> %s", cfg.Audit.Path)
		}
	}

	hub := api.NewHub()
	controller := match.NewController(state, hub, audit, match.Config{
		PlayerLimit:      cfg.Match.PlayerLimit,
		CountdownSeconds: cfg.Match.CountdownSeconds,
		TickRate:         cfg.Match.TickRate,
	})

	server := api.NewServer(hub, controller, api.ServerOptions{})
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Printf("🛑 received %v, shutting down", sig)
		cancel()
	}()

	controller.Run(ctx)
}

// promptLevel asks the operator which maze to play, exactly once at startup.
func promptLevel() int {
	fmt.Println("######### MULTIPLAYER-FPS: MAZE WARS #########")
	fmt.Println("Welcome warrior !")
	fmt.Println("Pick a level:")
	fmt.Println("1. lvl 1 (Easy)")
	fmt.Println("2. lvl 2 (Medium)")
	fmt.Println("3. lvl 3 (Hard)")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("$ ")
		line, err := reader.ReadString('\n')
		if err != nil {
			// No interactive stdin (container, CI): play level 1.
			fmt.Println()
			log.Println("💡 no interactive input, defaulting to level 1")
			return 1
		}

		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Println("❌ invalid input, please enter a valid number")
			continue
		}
		if choice < game.MinLevel || choice > game.MaxLevel {
			fmt.Printf("❌ invalid input, please pick %d, %d or %d\n",
				game.MinLevel, game.MinLevel+1, game.MaxLevel)
			continue
		}
		return choice
	}
}
