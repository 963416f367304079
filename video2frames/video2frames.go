// Package video2frames 使用 ffmpeg 将视频按固定帧率拆分为 PNG 帧序列。
package video2frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

var (
	ErrVideoNotFound = errors.New("input video not found")
	ErrNoFrames      = errors.New("no frames extracted")
)

// 测试中替换
var runStream = func(s *ffmpeg.Stream) error { return s.Run() }

// Extract 抽取视频帧到 RawDir，返回按序号排序的帧序列
func Extract(ctx context.Context, cfg config.Config, log *logging.Logger) (v2stypes.Sequence, error) {
	fi, err := os.Stat(cfg.InputVideo)
	if err != nil || fi.IsDir() {
		return v2stypes.Sequence{}, fmt.Errorf("%s: %w", cfg.InputVideo, ErrVideoNotFound)
	}

	fps := cfg.ExtractFPS
	if fps <= 0 {
		fps = 1
	}
	dir := cfg.Layout().RawDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return v2stypes.Sequence{}, err
	}

	if info, err := Probe(cfg.InputVideo, cfg.ToolTimeout); err != nil {
		log.Warn("probe %s: %v", filepath.Base(cfg.InputVideo), err)
	} else {
		log.Info("Source: %dx%d, %.2f fps, %.2fs (~%d frames), expecting ~%d frames at %d fps",
			info.Width, info.Height, info.FrameRate, info.Duration, info.TotalFrames,
			info.ExpectedFrames(fps), fps)
	}

	tctx, cancel := context.WithTimeout(ctx, cfg.ToolTimeout)
	defer cancel()

	var stderr bytes.Buffer
	stream := ffmpeg.Input(cfg.InputVideo).
		Output(filepath.Join(dir, frameio.Pattern), ffmpeg.KwArgs{
			"vf": fmt.Sprintf("fps=%d", fps),
		}).
		OverWriteOutput()
	stream.Context = tctx
	stream = stream.WithErrorOutput(&stderr)
	log.Debug("ffmpeg %s", strings.Join(stream.GetArgs(), " "))

	if err := runStream(stream); err != nil {
		if tctx.Err() != nil {
			return v2stypes.Sequence{}, fmt.Errorf("ffmpeg extract: %w", tctx.Err())
		}
		return v2stypes.Sequence{}, fmt.Errorf("ffmpeg extract: %w: %s", err, lastLines(stderr.String(), 5))
	}

	seq, err := frameio.Scan(dir, v2stypes.StageRaw)
	if err != nil {
		if errors.Is(err, frameio.ErrMissingDir) {
			return v2stypes.Sequence{}, ErrNoFrames
		}
		return v2stypes.Sequence{}, err
	}
	log.Success("Extracted %d frames to %s", seq.Len(), dir)
	return seq, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
