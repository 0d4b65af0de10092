package video

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"browser-pilot/internal/application/port/output"
)

var _ output.VideoSinkPort = (*FFmpegSink)(nil)

// FFmpegSink pipes screencast frames (one encoded image each) to an external
// ffmpeg process that assembles the video file. When ffmpeg is not installed,
// Start reports false and recording is skipped for the run.
type FFmpegSink struct {
	logger output.LoggerPort

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	path  string
}

func NewFFmpegSink(logger output.LoggerPort) *FFmpegSink {
	return &FFmpegSink{logger: logger}
}

func (s *FFmpegSink) Start(path string, fps, width, height int) bool {
	binary, err := exec.LookPath("ffmpeg")
	if err != nil {
		s.logger.Info("ffmpeg not found, video recording disabled")
		return false
	}

	cmd := exec.Command(binary,
		"-y",
		"-f", "image2pipe",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:-1:-1", width, height, width, height),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.logger.Warn("ffmpeg stdin pipe failed", "error", err)
		return false
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn("ffmpeg start failed", "error", err)
		return false
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.path = path
	s.mu.Unlock()
	return true
}

func (s *FFmpegSink) WriteFrame(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return false
	}
	if _, err := s.stdin.Write(frame); err != nil {
		s.logger.Warn("ffmpeg frame write failed", "error", err)
		return false
	}
	return true
}

func (s *FFmpegSink) Finish() (string, bool) {
	s.mu.Lock()
	cmd, stdin, path := s.cmd, s.stdin, s.path
	s.cmd, s.stdin, s.path = nil, nil, ""
	s.mu.Unlock()

	if cmd == nil {
		return "", false
	}
	if stdin != nil {
		_ = stdin.Close()
	}
	if err := cmd.Wait(); err != nil {
		s.logger.Warn("ffmpeg exited with error", "error", err)
		return "", false
	}
	return path, true
}
