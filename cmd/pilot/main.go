package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"browser-pilot/internal/di"
	"browser-pilot/internal/infrastructure/env"
	"browser-pilot/internal/usecase/automation"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <goal> <start-url>\n", os.Args[0])
		os.Exit(2)
	}
	goal, startURL := os.Args[1], os.Args[2]

	envService := env.NewEnvService()

	autoCfg := automation.DefaultConfig()
	autoCfg.MaxSteps = envService.GetInt("PILOT_MAX_STEPS", autoCfg.MaxSteps)
	autoCfg.MaxRetries = envService.GetInt("PILOT_MAX_RETRIES", autoCfg.MaxRetries)
	autoCfg.VerifyEnabled = envService.GetBool("PILOT_VERIFY", true)
	autoCfg.DecideTimeout = envService.GetDuration("PILOT_DECIDE_TIMEOUT", autoCfg.DecideTimeout)
	autoCfg.VideoPath = envService.Get("PILOT_VIDEO_PATH")

	container, err := di.NewContainer(di.Config{
		Goal:             goal,
		OpenRouterAPIKey: envService.MustGet("OPENROUTER_API_KEY"),
		OpenRouterModel:  envService.MustGet("OPENROUTER_MODEL_NAME"),
		VisionCapable:    envService.GetBool("PILOT_VISION", false),
		DevToolsURL:      envService.Get("PILOT_DEVTOOLS_URL"),
		BrowserHeadless:  envService.GetBool("PILOT_HEADLESS", true),
		SessionDir:       envService.Get("PILOT_SESSION_DIR"),
		Automation:       autoCfg,
	})
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.Logger.Info("Run started", "goal", goal, "url", startURL)

	result, err := container.Runner.Run(ctx, goal, startURL)
	if err != nil {
		container.Logger.Error("Run aborted", "error", err)
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", err)
		os.Exit(1)
	}

	container.Logger.Info("Run finished",
		"success", result.Success,
		"steps", result.Steps,
		"retries", result.TotalRetries,
	)

	if !result.Success {
		os.Exit(1)
	}
}
