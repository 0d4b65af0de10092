package verifier

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/browser"
	"browser-pilot/internal/infrastructure/cdp"
)

// Config holds the stability thresholds. They are empirically chosen defaults,
// kept configurable rather than treated as invariants.
type Config struct {
	MinDwell       time.Duration
	MaxWait        time.Duration
	SampleInterval time.Duration
	WarnConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MinDwell:       300 * time.Millisecond,
		MaxWait:        1500 * time.Millisecond,
		SampleInterval: 150 * time.Millisecond,
		WarnConfidence: 0.7,
	}
}

// Verifier runs the before/after verification pipeline: wait for the page to
// stop changing, capture the after frame, and ask the visual judge for a
// verdict. Missing or failing judgement degrades to a neutral verdict and
// never blocks the step.
type Verifier struct {
	judge  output.VisualJudgePort
	logger output.LoggerPort
	cfg    Config
}

func New(judge output.VisualJudgePort, logger output.LoggerPort, cfg Config) *Verifier {
	def := DefaultConfig()
	if cfg.MinDwell <= 0 {
		cfg.MinDwell = def.MinDwell
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.WarnConfidence <= 0 {
		cfg.WarnConfidence = def.WarnConfidence
	}
	return &Verifier{judge: judge, logger: logger, cfg: cfg}
}

// Supported reports whether a visual-judgement capability is wired in.
func (v *Verifier) Supported() bool {
	return v.judge != nil
}

var neutralVerdict = entity.Verdict{Success: true, Confidence: 0.5, Reason: "unsupported"}

// Verify waits for a stable frame, captures the after image and submits the
// (action, before, after) triple to the judge.
func (v *Verifier) Verify(ctx context.Context, conn *cdp.Client, action entity.Action, before []byte) entity.Verdict {
	if v.judge == nil {
		return neutralVerdict
	}

	after := v.waitStable(ctx, conn)
	if after == nil {
		v.logger.Warn("Verification capture failed, using neutral verdict")
		return neutralVerdict
	}

	verdict, err := v.judge.Judge(ctx, action, before, after)
	if err != nil {
		v.logger.Warn("Visual judgement failed, using neutral verdict", "error", err)
		return neutralVerdict
	}

	// Advisory only: a confident negative verdict is telemetry for the policy
	// and operators, it does not fail the step.
	if !verdict.Success && verdict.Confidence >= v.cfg.WarnConfidence {
		v.logger.Warn("Action likely had no effect",
			"action", action.Type,
			"selector", action.Selector,
			"confidence", verdict.Confidence,
			"reason", verdict.Reason,
		)
	}
	return verdict
}

// waitStable samples frames until two consecutive captures hash identically
// for at least MinDwell, or MaxWait elapses. Returns the last captured frame,
// or nil when no frame could be captured at all.
func (v *Verifier) waitStable(ctx context.Context, conn *cdp.Client) []byte {
	deadline := time.Now().Add(v.cfg.MaxWait)

	var last []byte
	var lastHash uint64
	var stableSince time.Time

	for {
		frame, err := browser.CaptureFrame(ctx, conn)
		if err == nil {
			h := xxhash.Sum64(frame)
			if last != nil && h == lastHash {
				if stableSince.IsZero() {
					stableSince = time.Now()
				} else if time.Since(stableSince) >= v.cfg.MinDwell {
					return frame
				}
			} else {
				stableSince = time.Time{}
			}
			last = frame
			lastHash = h
		}

		if time.Now().After(deadline) {
			return last
		}

		timer := time.NewTimer(v.cfg.SampleInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return last
		}
	}
}
