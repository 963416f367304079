package v2stypes

import (
	"image/color"
	"sort"
)

// Stage 标识一个帧序列由哪个处理阶段产生
type Stage string

const (
	StageRaw   Stage = "raw"
	StageNoBG  Stage = "nobg"
	StagePixel Stage = "pixel"
	StageFinal Stage = "final"
)

// Frame 表示序列中的一帧（以文件句柄形式存在，按需加载）
type Frame struct {
	Index  int // 从 1 开始，跨阶段保持不变
	Path   string
	Width  int
	Height int
	Stage  Stage
}

// Sequence 是某一阶段输出目录中的有序帧集合
type Sequence struct {
	Stage  Stage
	Dir    string
	Frames []Frame
}

// NewSequence 按帧序号排序后构造序列
func NewSequence(stage Stage, dir string, frames []Frame) Sequence {
	sorted := append([]Frame(nil), frames...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return Sequence{Stage: stage, Dir: dir, Frames: sorted}
}

func (s Sequence) Len() int { return len(s.Frames) }

func (s Sequence) Empty() bool { return len(s.Frames) == 0 }

// Head 返回前 n 帧（按序号），n 超出长度时返回全部
func (s Sequence) Head(n int) Sequence {
	if n < 0 {
		n = 0
	}
	if n > len(s.Frames) {
		n = len(s.Frames)
	}
	return Sequence{Stage: s.Stage, Dir: s.Dir, Frames: append([]Frame(nil), s.Frames[:n]...)}
}

// Indices 返回序列中所有帧序号
func (s Sequence) Indices() []int {
	out := make([]int, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.Index
	}
	return out
}

// Palette 是一次运行中共享的只读全局调色板
type Palette struct {
	colors   []color.RGBA
	Source   string
	Dominant color.RGBA // 采样帧的主色，A 为 0 表示未知
}

// NewPalette 复制颜色并强制不透明
func NewPalette(colors []color.RGBA, source string) *Palette {
	cp := make([]color.RGBA, len(colors))
	for i, c := range colors {
		c.A = 255
		cp[i] = c
	}
	return &Palette{colors: cp, Source: source}
}

// Colors 返回颜色副本，调用方修改不会影响调色板
func (p *Palette) Colors() []color.RGBA {
	if p == nil {
		return nil
	}
	return append([]color.RGBA(nil), p.colors...)
}

func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.colors)
}

// At 返回第 i 个颜色
func (p *Palette) At(i int) color.RGBA {
	return p.colors[i]
}

// Cell 是精灵图中单帧的矩形位置
type Cell struct {
	Index int `json:"index"`
	X     int `json:"x"`
	Y     int `json:"y"`
	W     int `json:"w"`
	H     int `json:"h"`
}

// Layout 描述精灵图整体尺寸及各帧偏移
type Layout struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  []Cell `json:"frames"`
}

// Pixel 表示一个像素的 RGB 值
type Pixel struct {
	R, G, B int
}

// Box 表示中位切分中的颜色盒子，Weights 与 Pixels 一一对应
type Box struct {
	Pixels     []Pixel
	Weights    []int
	RMin, RMax int
	GMin, GMax int
	BMin, BMax int
}

// FrameSVG 单帧轮廓描摹得到的 SVG
type FrameSVG struct {
	FrameIndex int
	SVGData    string
}

// FrameOutline 写入 outlines.json 的单帧轮廓数据
type FrameOutline struct {
	FrameIndex int       `json:"frameIndex"`
	ViewBox    []float64 `json:"viewBox"`
	Paths      []string  `json:"paths"`
}
