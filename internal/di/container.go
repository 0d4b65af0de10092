package di

import (
	"context"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/infrastructure/browser"
	"browser-pilot/internal/infrastructure/cdp"
	"browser-pilot/internal/infrastructure/console"
	"browser-pilot/internal/infrastructure/llm/openrouter"
	"browser-pilot/internal/infrastructure/logger"
	"browser-pilot/internal/infrastructure/session"
	"browser-pilot/internal/infrastructure/video"
	"browser-pilot/internal/usecase/automation"
	"browser-pilot/internal/usecase/verifier"
)

type Container struct {
	Runner   input.AutomationRunner
	Logger   output.LoggerPort
	Recorder *session.JSONLRecorder
}

type Config struct {
	Goal string

	OpenRouterAPIKey string
	OpenRouterModel  string
	VisionCapable    bool

	// DevToolsURL attaches to a running browser; empty launches one locally.
	DevToolsURL     string
	BrowserHeadless bool

	SessionDir  string
	MaxElements int
	Automation  automation.Config
	Verifier    verifier.Config
	Executor    browser.ExecutorConfig
}

func NewContainer(cfg Config) (*Container, error) {
	log, err := logger.NewZapAdapter(cfg.Goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	policy := openrouter.NewOpenRouterAdapter(openrouter.Config{
		APIKey:        cfg.OpenRouterAPIKey,
		Model:         cfg.OpenRouterModel,
		BaseURL:       "https://openrouter.ai/api/v1",
		VisionCapable: cfg.VisionCapable,
		Logger:        log,
	})

	var judge output.VisualJudgePort
	if cfg.VisionCapable {
		judge = policy
	}

	recorder := session.NewJSONLRecorder(cfg.SessionDir)

	controller := automation.New(automation.Deps{
		Dial:      dialFunc(cfg, log),
		Extractor: browser.NewExtractor(cfg.MaxElements),
		Executor:  browser.NewExecutor(cfg.Executor),
		Verifier:  verifier.New(judge, log, cfg.Verifier),
		Policy:    policy,
		Recorder:  recorder,
		Video:     video.NewFFmpegSink(log),
		Telemetry: console.NewTelemetry(),
		Logger:    log,
	}, cfg.Automation)

	return &Container{
		Runner:   controller,
		Logger:   log,
		Recorder: recorder,
	}, nil
}

// dialFunc scopes browser acquisition to the run: attach when a DevTools URL
// is configured, otherwise launch a local browser and tear it down afterwards.
func dialFunc(cfg Config, log output.LoggerPort) automation.DialFunc {
	return func(ctx context.Context) (*cdp.Client, func(), error) {
		devtoolsURL := cfg.DevToolsURL
		var cleanup func()

		if devtoolsURL == "" {
			launcher, url, err := cdp.Launch(cdp.LaunchConfig{
				Headless:  cfg.BrowserHeadless,
				NoSandbox: true,
			})
			if err != nil {
				return nil, nil, err
			}
			devtoolsURL = url
			cleanup = launcher.Close
			log.Info("Browser launched", "devtools", devtoolsURL)
		}

		conn, err := cdp.Dial(ctx, devtoolsURL)
		if err != nil {
			if cleanup != nil {
				cleanup()
			}
			return nil, nil, err
		}
		return conn, cleanup, nil
	}
}

func (c *Container) Close() {
	if c.Recorder != nil {
		c.Recorder.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
