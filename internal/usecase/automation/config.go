package automation

import "time"

// Config bounds one automation run.
type Config struct {
	MaxSteps      int
	MaxRetries    int
	HistoryWindow int
	DecideTimeout time.Duration
	VerifyEnabled bool
	Stuck         StuckConfig

	// Video recording; empty path disables it.
	VideoPath   string
	VideoFPS    int
	VideoWidth  int
	VideoHeight int
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:      20,
		MaxRetries:    3,
		HistoryWindow: 5,
		DecideTimeout: 60 * time.Second,
		VerifyEnabled: true,
		Stuck:         DefaultStuckConfig(),
		VideoFPS:      5,
		VideoWidth:    1280,
		VideoHeight:   800,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = def.HistoryWindow
	}
	if c.DecideTimeout <= 0 {
		c.DecideTimeout = def.DecideTimeout
	}
	if c.VideoFPS <= 0 {
		c.VideoFPS = def.VideoFPS
	}
	if c.VideoWidth <= 0 {
		c.VideoWidth = def.VideoWidth
	}
	if c.VideoHeight <= 0 {
		c.VideoHeight = def.VideoHeight
	}
	return c
}
