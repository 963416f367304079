package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"vid2sprite/check"
	"vid2sprite/config"
	"vid2sprite/frame2pixel"
	"vid2sprite/frameio"
	"vid2sprite/frames2gif"
	"vid2sprite/logging"
	"vid2sprite/outline"
	"vid2sprite/palette"
	"vid2sprite/publish"
	"vid2sprite/rembg"
	"vid2sprite/report"
	"vid2sprite/spritesheet"
	v2stypes "vid2sprite/type"
	"vid2sprite/video2frames"
)

// pipeline 持有一次运行中各阶段共享的依赖
type pipeline struct {
	cfg      config.Config
	log      *logging.Logger
	remover  rembg.Remover
	gif      *frames2gif.Encoder
	uploader s3manageriface.UploaderAPI // nil 时按需创建
}

func runPipeline(ctx context.Context, cfg config.Config, log *logging.Logger) error {
	if err := check.CheckDeps(cfg); err != nil {
		return err
	}
	for _, err := range check.Optional() {
		log.Warn("%v, source frame count will not be estimated", err)
	}
	remover, err := rembg.New(cfg)
	if err != nil {
		return fmt.Errorf("background remover: %w", err)
	}
	p := &pipeline{
		cfg:     cfg,
		log:     log,
		remover: remover,
		gif:     frames2gif.NewEncoder(cfg, log),
	}
	return p.run(ctx)
}

// prepare 清空阶段目录并删除上次运行留下的产物
func (p *pipeline) prepare() error {
	l := p.cfg.Layout()
	if err := frameio.ResetDirs(l.StageDirs()...); err != nil {
		return err
	}
	return frameio.RemoveFiles(append(l.Artifacts(), l.GIFPalette)...)
}

// run 依次执行各阶段，任一核心阶段失败即停止
func (p *pipeline) run(ctx context.Context) error {
	cfg, log := p.cfg, p.log
	l := cfg.Layout()

	log.Info("Input: %s, output: %s", cfg.InputVideo, l.Root)
	if err := p.prepare(); err != nil {
		return err
	}

	log.Info("--- Stage 1/7: extract frames ---")
	raw, err := video2frames.Extract(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	log.Info("--- Stage 2/7: remove background ---")
	noBG, err := rembg.Run(ctx, cfg, p.remover, raw, log)
	if err != nil {
		return err
	}

	log.Info("--- Stage 3/7: pixelate ---")
	pixel, err := frame2pixel.Run(ctx, cfg, noBG, log)
	if err != nil {
		return err
	}

	return p.finish(ctx, pixel)
}

// finish 从像素化帧开始完成调色板、量化、精灵图、GIF 与附加产物
func (p *pipeline) finish(ctx context.Context, pixel v2stypes.Sequence) error {
	cfg, log := p.cfg, p.log
	l := cfg.Layout()

	log.Info("--- Stage 4/7: build palette ---")
	var pal *v2stypes.Palette
	if cfg.GlobalPalette {
		pal = palette.Build(pixel, cfg.Colors, cfg.PaletteSamples, log)
		if pal == nil {
			log.Warn("Global palette unavailable, falling back to per-frame quantization")
		} else {
			log.Success("Global palette: %d colours from %s", pal.Len(), pal.Source)
		}
	} else {
		log.Info("Global palette disabled")
	}

	log.Info("--- Stage 5/7: quantize ---")
	final, err := palette.Quantize(ctx, cfg, pixel, pal, log)
	if err != nil {
		return err
	}

	log.Info("--- Stage 6/7: sprite sheet ---")
	sheet, layout, err := spritesheet.Assemble(final)
	if err != nil {
		return fmt.Errorf("sprite sheet: %w", err)
	}
	if err := spritesheet.Save(l.SheetPath, sheet); err != nil {
		return fmt.Errorf("sprite sheet: %w", err)
	}
	log.Success("Sprite sheet %dx%d (%d frames) written to %s", layout.Width, layout.Height, len(layout.Cells), l.SheetPath)

	if cfg.Atlas {
		if err := spritesheet.WriteAtlas(l.AtlasPath, filepath.Base(l.SheetPath), layout, cfg.GIFFPS); err != nil {
			log.Warn("atlas: %v", err)
		}
	}
	if cfg.PreviewScale > 1 {
		if err := spritesheet.Save(l.PreviewPath, spritesheet.Preview(sheet, cfg.PreviewScale)); err != nil {
			log.Warn("preview: %v", err)
		}
	}

	log.Info("--- Stage 7/7: GIF ---")
	if err := p.gif.Encode(ctx, final, l.GIFPath); err != nil {
		log.Error("GIF creation failed: %v", err)
	}

	if cfg.PaletteExport && pal != nil {
		if err := palette.Export(cfg, pal, log); err != nil {
			log.Warn("palette export: %v", err)
		}
	}
	if cfg.Outline {
		if err := outline.Run(ctx, cfg, final, log); err != nil {
			log.Warn("outline: %v", err)
		}
	}
	report.Run(final, log)

	if err := publish.Run(ctx, cfg, p.uploader, log); err != nil {
		log.Warn("publish: %v", err)
	}
	return ctx.Err()
}
