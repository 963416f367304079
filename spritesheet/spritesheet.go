// Package spritesheet 将最终帧横向拼接为精灵图，并生成图集描述与放大预览。
package spritesheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"vid2sprite/frameio"
	v2stypes "vid2sprite/type"
)

var ErrNoFrames = errors.New("no frames for sprite sheet")

// Plan 计算布局：宽度为各帧宽度之和，高度取最大帧高，帧按序号从左到右排列
func Plan(frames []v2stypes.Frame) v2stypes.Layout {
	layout := v2stypes.Layout{Cells: make([]v2stypes.Cell, 0, len(frames))}
	x := 0
	for _, f := range frames {
		layout.Cells = append(layout.Cells, v2stypes.Cell{Index: f.Index, X: x, Y: 0, W: f.Width, H: f.Height})
		x += f.Width
		layout.Height = max(layout.Height, f.Height)
	}
	layout.Width = x
	return layout
}

// Assemble 加载全部帧并粘贴到透明画布上。任意一帧无法加载即失败。
func Assemble(in v2stypes.Sequence) (*image.NRGBA, v2stypes.Layout, error) {
	if in.Empty() {
		return nil, v2stypes.Layout{}, ErrNoFrames
	}

	imgs := make([]*image.NRGBA, in.Len())
	frames := make([]v2stypes.Frame, in.Len())
	for i, f := range in.Frames {
		img, _, err := frameio.Load(f.Path)
		if err != nil {
			return nil, v2stypes.Layout{}, fmt.Errorf("%s: %w", frameio.FrameName(f.Index), err)
		}
		imgs[i] = img
		// 以实际解码尺寸为准
		f.Width, f.Height = img.Bounds().Dx(), img.Bounds().Dy()
		frames[i] = f
	}

	layout := Plan(frames)
	if layout.Width == 0 || layout.Height == 0 {
		return nil, layout, ErrNoFrames
	}
	sheet := imaging.New(layout.Width, layout.Height, color.NRGBA{})
	for i, c := range layout.Cells {
		// Paste 直接覆盖像素，不做混合，透明度原样保留
		sheet = imaging.Paste(sheet, imgs[i], image.Pt(c.X, c.Y))
	}
	return sheet, layout, nil
}

// Save 原子写入 PNG
func Save(path string, sheet image.Image) error {
	return frameio.Save(path, sheet)
}

type atlas struct {
	Image           string `json:"image"`
	FrameDurationMs int    `json:"frameDurationMs"`
	v2stypes.Layout
}

// WriteAtlas 写出帧矩形描述，帧时长由 GIF 帧率推算
func WriteAtlas(path, imageName string, layout v2stypes.Layout, fps int) error {
	a := atlas{Image: imageName, Layout: layout}
	if fps > 0 {
		a.FrameDurationMs = 1000 / fps
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return frameio.WriteFileAtomic(path, append(data, '\n'))
}

// Preview 最近邻放大 scale 倍，保持像素块边缘清晰
func Preview(sheet image.Image, scale int) image.Image {
	if scale <= 1 {
		return sheet
	}
	b := sheet.Bounds()
	return resize.Resize(uint(b.Dx()*scale), uint(b.Dy()*scale), sheet, resize.NearestNeighbor)
}
