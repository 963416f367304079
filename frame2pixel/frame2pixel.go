// Package frame2pixel 通过按块面积平均缩小帧来得到像素画效果。
package frame2pixel

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

var ErrEmptyInput = errors.New("no frames to pixelate")

// TargetSize 计算缩小后的尺寸，每个维度至少为 1。
// clamped 表示某个维度小于 d，被强制为 1。
func TargetSize(w, h, d int) (tw, th int, clamped bool) {
	if d <= 0 {
		return w, h, false
	}
	tw, th = w/d, h/d
	if tw < 1 {
		tw, clamped = 1, true
	}
	if th < 1 {
		th, clamped = 1, true
	}
	return tw, th, clamped
}

// Adjust 缩小前的色调调整，参数为默认值时原样返回
func Adjust(img image.Image, cfg config.Config) image.Image {
	if cfg.Gamma > 0 && cfg.Gamma != 1.0 {
		img = imaging.AdjustGamma(img, cfg.Gamma)
	}
	if cfg.Contrast != 0 {
		img = imaging.AdjustContrast(img, cfg.Contrast)
	}
	if cfg.Sharpen > 0 {
		img = imaging.Sharpen(img, cfg.Sharpen)
	}
	return img
}

// Pixelate 用 Box 滤波缩小到目标尺寸，即对每个 d×d 块取平均
func Pixelate(img image.Image, d int) *image.NRGBA {
	b := img.Bounds()
	tw, th, _ := TargetSize(b.Dx(), b.Dy(), d)
	return imaging.Resize(img, tw, th, imaging.Box)
}

// Run 像素化序列中的每一帧并写入 PixelDir
func Run(ctx context.Context, cfg config.Config, in v2stypes.Sequence, log *logging.Logger) (v2stypes.Sequence, error) {
	if in.Empty() {
		return v2stypes.Sequence{}, ErrEmptyInput
	}
	d := cfg.DownscaleFactor
	dir := cfg.Layout().PixelDir
	opts := frameio.Options{Workers: cfg.Workers, Progress: cfg.Progress, Label: "pixelate"}

	var fn frameio.Func
	if d <= 0 {
		log.Warn("Downscale factor %d is not positive, copying frames unchanged", d)
		fn = func(_ context.Context, f v2stypes.Frame, dst string) (int, int, error) {
			return f.Width, f.Height, frameio.CopyFile(f.Path, dst)
		}
	} else {
		fn = func(_ context.Context, f v2stypes.Frame, dst string) (int, int, error) {
			img, err := imaging.Open(f.Path)
			if err != nil {
				return 0, 0, err
			}
			b := img.Bounds()
			tw, th, clamped := TargetSize(b.Dx(), b.Dy(), d)
			if clamped {
				log.Warn("%s: %dx%d is smaller than factor %d, clamped to %dx%d",
					frameio.FrameName(f.Index), b.Dx(), b.Dy(), d, tw, th)
			}
			out := Pixelate(Adjust(img, cfg), d)
			if err := frameio.Save(dst, out); err != nil {
				return 0, 0, err
			}
			return tw, th, nil
		}
	}

	out, err := frameio.Map(ctx, in, dir, v2stypes.StagePixel, opts, log, fn)
	if err != nil {
		return v2stypes.Sequence{}, fmt.Errorf("pixelate: %w", err)
	}
	if out.Empty() {
		return v2stypes.Sequence{}, fmt.Errorf("pixelate: %w", ErrEmptyInput)
	}
	log.Success("Pixelated %d frames (factor %d) to %s", out.Len(), d, dir)
	return out, nil
}
