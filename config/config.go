// Package config 保存一次运行的全部参数：默认值、校验以及输出目录布局。
// Config 构造完成后按值传给各阶段，运行期间不再修改。
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ColorMode 控制日志的 ANSI 颜色输出
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// 背景移除模型
const (
	FastModel    = "u2net"
	QualityModel = "isnet-general-use"
)

// Config 一次运行的全部配置
type Config struct {
	// 输入输出
	InputVideo string
	OutputDir  string

	// 阶段参数
	ExtractFPS      int     // 抽帧帧率，默认 25
	DownscaleFactor int     // 像素化缩小倍数，默认 8；<=0 时原样复制
	Colors          int     // 量化颜色数，默认 16
	PaletteSamples  int     // 构建全局调色板时采样的帧数上限，默认 50
	GlobalPalette   bool    // 默认 true；false 时逐帧独立量化
	Gamma           float64 // 像素化前的伽马校正，1.0 为原图
	Contrast        float64 // 像素化前的对比度调整，0 为原图
	Sharpen         float64 // 像素化前的锐化 sigma，0 为不锐化

	// GIF
	GIFFPS  int // 输出帧率，默认 10
	GIFSkip int // 每 N 帧取一帧，默认 1

	// 背景移除
	HighQuality  bool   // 高质量模型 + alpha matting
	RembgCommand string // 默认 "rembg"
	RembgURL     string // 设置后使用 rembg 服务而不是命令行

	// 附加产物
	PreviewScale  int  // 预览图放大倍数，0 关闭，默认 8
	Atlas         bool // 默认 true
	Outline       bool
	PaletteExport bool // 默认 true

	// 发布
	S3Bucket string
	S3Prefix string
	S3Region string

	// 执行
	Workers     int           // 单阶段内并行处理的帧数，默认 1
	ToolTimeout time.Duration // 单次外部命令超时，默认 10 分钟

	// 显示与日志
	Verbose   bool
	Progress  bool
	ColorMode ColorMode
	LogFile   string
	CheckOnly bool
}

// DefaultConfig 返回与原始流水线常量一致的默认配置
func DefaultConfig() Config {
	return Config{
		OutputDir:       "vid2sprite_output",
		ExtractFPS:      25,
		DownscaleFactor: 8,
		Colors:          16,
		PaletteSamples:  50,
		GlobalPalette:   true,
		Gamma:           1.0,
		GIFFPS:          10,
		GIFSkip:         1,
		RembgCommand:    "rembg",
		PreviewScale:    8,
		Atlas:           true,
		PaletteExport:   true,
		S3Region:        "us-east-1",
		Workers:         1,
		ToolTimeout:     10 * time.Minute,
		ColorMode:       ColorAuto,
	}
}

// Validate 校验配置。DownscaleFactor 不在此校验，非法值由像素化阶段降级处理。
func (c Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}
	if c.CheckOnly {
		return nil
	}
	if strings.TrimSpace(c.InputVideo) == "" {
		return errors.New("need an input video")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory must not be empty")
	}
	if c.ExtractFPS <= 0 {
		return fmt.Errorf("invalid fps %d (must be > 0)", c.ExtractFPS)
	}
	if c.Colors < 1 || c.Colors > 256 {
		return fmt.Errorf("invalid color count %d (use 1-256)", c.Colors)
	}
	if c.PaletteSamples < 1 {
		return fmt.Errorf("invalid palette sample cap %d (must be >= 1)", c.PaletteSamples)
	}
	if c.GIFFPS <= 0 {
		return fmt.Errorf("invalid gif fps %d (must be > 0)", c.GIFFPS)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("invalid gamma %v (must be > 0)", c.Gamma)
	}
	if c.PreviewScale < 0 {
		return fmt.Errorf("invalid preview scale %d", c.PreviewScale)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid worker count %d (must be >= 1)", c.Workers)
	}
	if c.ToolTimeout <= 0 {
		return errors.New("tool timeout must be positive")
	}
	if c.RembgURL == "" && strings.TrimSpace(c.RembgCommand) == "" {
		return errors.New("need either a rembg command or a rembg service url")
	}
	return nil
}

// EffectiveSkip 返回至少为 1 的抽帧间隔
func (c Config) EffectiveSkip() int {
	if c.GIFSkip < 1 {
		return 1
	}
	return c.GIFSkip
}

// RemovalModel 返回当前档位使用的 rembg 模型
func (c Config) RemovalModel() string {
	if c.HighQuality {
		return QualityModel
	}
	return FastModel
}

// Layout 输出根目录下各阶段目录与最终产物的路径
type Layout struct {
	Root         string
	RawDir       string
	NoBGDir      string
	PixelDir     string
	FinalDir     string
	OutlineDir   string
	SheetPath    string
	AtlasPath    string
	PreviewPath  string
	GIFPath      string
	GIFPalette   string
	PaletteJSON  string
	PaletteSVG   string
	OutlinesJSON string
}

// Layout 由 OutputDir 推导全部路径
func (c Config) Layout() Layout {
	root := filepath.Clean(c.OutputDir)
	return Layout{
		Root:         root,
		RawDir:       filepath.Join(root, "01_raw_frames"),
		NoBGDir:      filepath.Join(root, "02_no_bg_frames"),
		PixelDir:     filepath.Join(root, "03_pixelated_frames"),
		FinalDir:     filepath.Join(root, "04_final_frames"),
		OutlineDir:   filepath.Join(root, "05_outlines"),
		SheetPath:    filepath.Join(root, "final_spritesheet.png"),
		AtlasPath:    filepath.Join(root, "final_spritesheet.json"),
		PreviewPath:  filepath.Join(root, "final_spritesheet_preview.png"),
		GIFPath:      filepath.Join(root, "final_animation.gif"),
		GIFPalette:   filepath.Join(root, "palette.png"),
		PaletteJSON:  filepath.Join(root, "palette.json"),
		PaletteSVG:   filepath.Join(root, "palette.svg"),
		OutlinesJSON: filepath.Join(root, "outlines.json"),
	}
}

// StageDirs 返回每次运行开始时需要清空重建的目录
func (l Layout) StageDirs() []string {
	return []string{l.RawDir, l.NoBGDir, l.PixelDir, l.FinalDir, l.OutlineDir}
}

// Artifacts 输出根目录下的最终产物
func (l Layout) Artifacts() []string {
	return []string{l.SheetPath, l.AtlasPath, l.PreviewPath, l.GIFPath, l.PaletteJSON, l.PaletteSVG, l.OutlinesJSON}
}
