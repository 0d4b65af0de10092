package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/cdp"
	"browser-pilot/internal/infrastructure/cdp/cdptest"
	"browser-pilot/internal/infrastructure/logger"
)

type fakeJudge struct {
	mu      sync.Mutex
	verdict entity.Verdict
	err     error
	before  []byte
	after   []byte
	calls   int
}

func (j *fakeJudge) Judge(ctx context.Context, action entity.Action, before, after []byte) (entity.Verdict, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	j.before = before
	j.after = after
	return j.verdict, j.err
}

func tinyPNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fastConfig() Config {
	return Config{
		MinDwell:       10 * time.Millisecond,
		MaxWait:        500 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
		WarnConfidence: 0.7,
	}
}

func TestVerify_NoJudgeIsNeutral(t *testing.T) {
	v := New(nil, logger.NewNop(), fastConfig())

	assert.False(t, v.Supported())

	verdict := v.Verify(context.Background(), nil, entity.Action{Type: entity.ActionClick}, nil)
	assert.True(t, verdict.Success)
	assert.Equal(t, 0.5, verdict.Confidence)
	assert.Equal(t, "unsupported", verdict.Reason)
}

func TestVerify_PassesFramesToJudge(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	srv.HandleResult("Page.captureScreenshot", map[string]any{"data": tinyPNG(t)})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := cdp.Dial(ctx, srv.URL())
	require.NoError(t, err)
	defer conn.Close()

	judge := &fakeJudge{verdict: entity.Verdict{Success: true, Confidence: 0.9, Reason: "page changed"}}
	v := New(judge, logger.NewNop(), fastConfig())
	require.True(t, v.Supported())

	before := []byte("before-frame")
	verdict := v.Verify(ctx, conn, entity.Action{Type: entity.ActionClick, Selector: "#go"}, before)

	assert.True(t, verdict.Success)
	assert.Equal(t, 0.9, verdict.Confidence)

	judge.mu.Lock()
	defer judge.mu.Unlock()
	assert.Equal(t, 1, judge.calls)
	assert.Equal(t, before, judge.before)
	assert.NotEmpty(t, judge.after)
}

func TestVerify_JudgeErrorIsNeutral(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	srv.HandleResult("Page.captureScreenshot", map[string]any{"data": tinyPNG(t)})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := cdp.Dial(ctx, srv.URL())
	require.NoError(t, err)
	defer conn.Close()

	judge := &fakeJudge{err: assert.AnError}
	v := New(judge, logger.NewNop(), fastConfig())

	verdict := v.Verify(ctx, conn, entity.Action{Type: entity.ActionClick}, nil)
	assert.True(t, verdict.Success)
	assert.Equal(t, 0.5, verdict.Confidence)
	assert.Equal(t, "unsupported", verdict.Reason)
}

func TestVerify_CaptureFailureIsNeutral(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	// Screenshot data that is not an image: every capture attempt fails.
	srv.HandleResult("Page.captureScreenshot", map[string]any{"data": base64.StdEncoding.EncodeToString([]byte("nope"))})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := cdp.Dial(ctx, srv.URL())
	require.NoError(t, err)
	defer conn.Close()

	judge := &fakeJudge{verdict: entity.Verdict{Success: false, Confidence: 0.9}}
	v := New(judge, logger.NewNop(), Config{
		MinDwell:       5 * time.Millisecond,
		MaxWait:        30 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
		WarnConfidence: 0.7,
	})

	verdict := v.Verify(ctx, conn, entity.Action{Type: entity.ActionClick}, nil)

	judge.mu.Lock()
	calls := judge.calls
	judge.mu.Unlock()
	assert.Zero(t, calls)
	assert.Equal(t, "unsupported", verdict.Reason)
}
