// Package outline 将最终帧的不透明区域描摹为矢量轮廓（SVG），并汇总为 outlines.json。
package outline

import (
	"bytes"
	"image"
	"image/color"

	"github.com/gotranspile/gotrace"
)

// DefaultThreshold alpha 不低于该值的像素视为前景
const DefaultThreshold = 128

// traceConfig 像素画不丢弃孤立像素，也不做曲线平滑
func traceConfig() *gotrace.Config {
	conf := gotrace.DefaultConfig()
	conf.TurdSize = 0
	conf.AlphaMax = 0
	return conf
}

// Trace 描摹 alpha 不低于 threshold 的区域，返回 SVG 文本
func Trace(img *image.NRGBA, threshold uint8) (string, error) {
	bm := gotrace.BitmapFromNRGBA(img, func(c color.NRGBA) bool {
		return c.A >= threshold
	})
	paths, err := gotrace.Trace(bm, traceConfig())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	sz := img.Bounds().Size()
	if err := gotrace.Render("svg", nil, &buf, paths, sz.X, sz.Y); err != nil {
		return "", err
	}
	return buf.String(), nil
}
