// Package rembg 调用 rembg（命令行或 HTTP 服务）去除帧背景。
package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

var ErrEmptyInput = errors.New("no frames for background removal")

// Remover 接收一帧图像数据，返回带透明通道的 PNG
type Remover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
	Name() string
}

// New 根据配置选择传输方式与模型档位。
// 设置了 RembgURL 时使用 HTTP 服务，否则使用命令行。
func New(cfg config.Config) (Remover, error) {
	model := cfg.RemovalModel()
	if cfg.RembgURL != "" {
		return newHTTPRemover(cfg.RembgURL, model, cfg.HighQuality, cfg.ToolTimeout)
	}
	return newCLIRemover(cfg.RembgCommand, model, cfg.HighQuality, cfg.ToolTimeout)
}

// Run 对每一帧去背景并写入 NoBGDir。
// 单帧失败只记录日志，该帧在输出中缺失。
func Run(ctx context.Context, cfg config.Config, remover Remover, in v2stypes.Sequence, log *logging.Logger) (v2stypes.Sequence, error) {
	if in.Empty() {
		return v2stypes.Sequence{}, ErrEmptyInput
	}
	log.Info("Removing background from %d frames with %s", in.Len(), remover.Name())

	out, err := frameio.Map(ctx, in, cfg.Layout().NoBGDir, v2stypes.StageNoBG,
		frameio.Options{Workers: cfg.Workers, Progress: cfg.Progress, Label: "rembg"}, log,
		func(ctx context.Context, f v2stypes.Frame, dst string) (int, int, error) {
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return 0, 0, err
			}
			res, err := remover.Remove(ctx, data)
			if err != nil {
				return 0, 0, err
			}
			img, _, err := image.Decode(bytes.NewReader(res))
			if err != nil {
				return 0, 0, fmt.Errorf("decode rembg output: %w", err)
			}
			nrgba, _, err := frameio.ToNRGBA(img)
			if err != nil {
				return 0, 0, err
			}
			b := nrgba.Bounds()
			if f.Width > 0 && (b.Dx() != f.Width || b.Dy() != f.Height) {
				return 0, 0, fmt.Errorf("rembg output is %dx%d, want %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
			}
			if err := frameio.Save(dst, nrgba); err != nil {
				return 0, 0, err
			}
			return b.Dx(), b.Dy(), nil
		})
	if err != nil {
		return v2stypes.Sequence{}, fmt.Errorf("remove background: %w", err)
	}
	if out.Empty() {
		return v2stypes.Sequence{}, fmt.Errorf("remove background: every frame failed: %w", ErrEmptyInput)
	}
	log.Success("Removed background from %d frames to %s", out.Len(), out.Dir)
	return out, nil
}
