// Package palette 负责全局调色板的构建、逐帧量化以及调色板导出。
package palette

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"

	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

var ErrEmptyInput = errors.New("no frames to quantize")

// Flatten 将帧合成到同尺寸的不透明白色画布上
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// ContactSheet 将各帧从左到右拼接，高度取最大值，空白处为白色
func ContactSheet(frames []*image.NRGBA) *image.NRGBA {
	width, height := 0, 0
	for _, f := range frames {
		width += f.Bounds().Dx()
		height = max(height, f.Bounds().Dy())
	}
	if width == 0 || height == 0 {
		return nil
	}
	sheet := imaging.New(width, height, color.White)
	x := 0
	for _, f := range frames {
		sheet = imaging.Paste(sheet, f, image.Pt(x, 0))
		x += f.Bounds().Dx()
	}
	return sheet
}

// Build 从序列的前 sampleCap 帧构建 k 色全局调色板。
// 没有可用帧或量化结果为空时返回 nil，调用方应退回逐帧量化。
func Build(in v2stypes.Sequence, k, sampleCap int, log *logging.Logger) *v2stypes.Palette {
	if in.Empty() || k <= 0 {
		return nil
	}
	if sampleCap < 1 {
		sampleCap = 1
	}
	sample := in.Head(sampleCap)

	flat := make([]*image.NRGBA, 0, sample.Len())
	for _, f := range sample.Frames {
		img, _, err := frameio.Load(f.Path)
		if err != nil {
			log.Warn("%s: %v", frameio.FrameName(f.Index), err)
			continue
		}
		flat = append(flat, Flatten(img))
	}
	if len(flat) == 0 {
		log.Warn("palette: none of the %d sampled frames could be loaded", sample.Len())
		return nil
	}

	sheet := ContactSheet(flat)
	if sheet == nil {
		return nil
	}
	log.Debug("palette: contact sheet %dx%d from %d frames", sheet.Bounds().Dx(), sheet.Bounds().Dy(), len(flat))

	colors := medianCut(histogram(sheet, false), k)
	if len(colors) == 0 {
		return nil
	}
	source := fmt.Sprintf("median-cut of %d frames (%d-%d)", len(flat), sample.Frames[0].Index, sample.Frames[sample.Len()-1].Index)
	pal := v2stypes.NewPalette(colors, source)
	if dom := dominantcolor.Find(sheet); dom.A != 0 {
		pal.Dominant = dom
		log.Debug("palette: dominant colour %s", dominantcolor.Hex(dom))
	}
	return pal
}
