package palette

import (
	"context"
	"fmt"
	"image"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

// QuantizeImage 量化单帧。pal 非空时映射到全局调色板，
// 否则对该帧单独做 k 色中位切分。两种情况都不抖动，alpha 原样保留。
func QuantizeImage(src *image.NRGBA, pal *v2stypes.Palette, k int) *image.NRGBA {
	if pal.Len() > 0 {
		return MapImage(src, pal.Colors())
	}
	return MapImage(src, medianCut(histogram(src, true), k))
}

// Quantize 量化序列中的每一帧并写入 FinalDir
func Quantize(ctx context.Context, cfg config.Config, in v2stypes.Sequence, pal *v2stypes.Palette, log *logging.Logger) (v2stypes.Sequence, error) {
	if in.Empty() {
		return v2stypes.Sequence{}, ErrEmptyInput
	}
	if pal.Len() > 0 {
		log.Info("Quantizing %d frames to global palette (%d colours)", in.Len(), pal.Len())
	} else {
		log.Warn("No global palette, quantizing %d frames independently to %d colours", in.Len(), cfg.Colors)
	}

	out, err := frameio.Map(ctx, in, cfg.Layout().FinalDir, v2stypes.StageFinal,
		frameio.Options{Workers: cfg.Workers, Progress: cfg.Progress, Label: "quantize"}, log,
		func(_ context.Context, f v2stypes.Frame, dst string) (int, int, error) {
			img, coerced, err := frameio.Load(f.Path)
			if err != nil {
				return 0, 0, err
			}
			if coerced {
				log.Warn("%s: converted to RGBA before quantization", frameio.FrameName(f.Index))
			}
			q := QuantizeImage(img, pal, cfg.Colors)
			if err := frameio.Save(dst, q); err != nil {
				return 0, 0, err
			}
			return q.Bounds().Dx(), q.Bounds().Dy(), nil
		})
	if err != nil {
		return v2stypes.Sequence{}, fmt.Errorf("quantize: %w", err)
	}
	log.Success("Quantized %d frames to %s", out.Len(), out.Dir)
	return out, nil
}
