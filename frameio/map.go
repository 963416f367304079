package frameio

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"

	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

// Func 处理单帧并写入 dst，返回输出帧的尺寸
type Func func(ctx context.Context, f v2stypes.Frame, dst string) (width, height int, err error)

// Options 控制 Map 的并发度与进度显示
type Options struct {
	Workers  int
	Progress bool
	Label    string
}

type result struct {
	frame v2stypes.Frame
	ok    bool
}

// Map 对序列中每一帧调用 fn，输出写入 outDir 下同名文件。
// 单帧失败只记录日志并跳过，输出序列保留原序号（留下空缺）。
// 只有 ctx 被取消时返回错误。
func Map(ctx context.Context, in v2stypes.Sequence, outDir string, outStage v2stypes.Stage, opts Options, log *logging.Logger, fn Func) (v2stypes.Sequence, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(in.Len(),
			progressbar.OptionSetDescription(opts.Label),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]result, in.Len())
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, f := range in.Frames {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, frame v2stypes.Frame) {
			defer wg.Done()
			defer func() { <-sem }()
			if bar != nil {
				defer func() { _ = bar.Add(1) }()
			}
			if ctx.Err() != nil {
				return
			}

			name := FrameName(frame.Index)
			dst := filepath.Join(outDir, name)
			w, h, err := fn(ctx, frame, dst)
			if err != nil {
				log.Warn("%s: %v", name, err)
				_ = os.Remove(dst)
				return
			}
			results[idx] = result{
				frame: v2stypes.Frame{Index: frame.Index, Path: dst, Width: w, Height: h, Stage: outStage},
				ok:    true,
			}
		}(i, f)
	}
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return v2stypes.Sequence{}, err
	}

	frames := make([]v2stypes.Frame, 0, len(results))
	for _, r := range results {
		if r.ok {
			frames = append(frames, r.frame)
		}
	}
	if skipped := in.Len() - len(frames); skipped > 0 {
		log.Warn("%s: %d of %d frames skipped", opts.Label, skipped, in.Len())
	}
	return v2stypes.NewSequence(outStage, outDir, frames), nil
}
