package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

// TraceFrame 加载一帧并描摹其不透明区域
func TraceFrame(f v2stypes.Frame) (v2stypes.FrameSVG, error) {
	img, _, err := frameio.Load(f.Path)
	if err != nil {
		return v2stypes.FrameSVG{}, err
	}
	data, err := Trace(img, DefaultThreshold)
	if err != nil {
		return v2stypes.FrameSVG{}, err
	}
	return v2stypes.FrameSVG{FrameIndex: f.Index, SVGData: data}, nil
}

// Run 为每一帧写出 SVG 轮廓，并把所有轮廓汇总到 outlines.json。
// 单帧失败只记录警告。
func Run(ctx context.Context, cfg config.Config, in v2stypes.Sequence, log *logging.Logger) error {
	l := cfg.Layout()
	if err := os.MkdirAll(l.OutlineDir, 0o755); err != nil {
		return err
	}

	results := make([]*v2stypes.FrameOutline, in.Len())
	sem := make(chan struct{}, max(1, cfg.Workers))
	var wg sync.WaitGroup
	for i, f := range in.Frames {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, frame v2stypes.Frame) {
			defer wg.Done()
			defer func() { <-sem }()
			name := frameio.FrameName(frame.Index)

			fsvg, err := TraceFrame(frame)
			if err != nil {
				log.Warn("outline %s: %v", name, err)
				return
			}
			svgPath := filepath.Join(l.OutlineDir, strings.TrimSuffix(name, ".png")+".svg")
			if err := frameio.WriteFileAtomic(svgPath, []byte(fsvg.SVGData)); err != nil {
				log.Warn("outline %s: %v", name, err)
				return
			}
			fo, err := ParseFrame(fsvg)
			if err != nil {
				log.Warn("outline %s: parse svg: %v", name, err)
				return
			}
			results[idx] = &fo
		}(i, f)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	outlines := make([]v2stypes.FrameOutline, 0, len(results))
	for _, r := range results {
		if r != nil {
			outlines = append(outlines, *r)
		}
	}
	data, err := json.MarshalIndent(outlines, "", "  ")
	if err != nil {
		return err
	}
	if err := frameio.WriteFileAtomic(l.OutlinesJSON, data); err != nil {
		return fmt.Errorf("outlines json: %w", err)
	}
	log.Info("Traced %d outlines to %s", len(outlines), l.OutlineDir)
	return nil
}
