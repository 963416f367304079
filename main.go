package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"vid2sprite/check"
	"vid2sprite/config"
	"vid2sprite/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(run).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars("VID2SPRITE_" + name)
}

// newCommand 构造命令行；action 在参数解析并校验后调用
func newCommand(action func(ctx context.Context, cfg config.Config) error) *cli.Command {
	def := config.DefaultConfig()
	return &cli.Command{
		Name:      "vid2sprite",
		Usage:     "Turn a video into a pixel-art sprite sheet and looping GIF",
		ArgsUsage: "<video>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: def.OutputDir, Usage: "output directory", Sources: env("OUT")},
			&cli.IntFlag{Name: "fps", Value: def.ExtractFPS, Usage: "frame extraction rate", Sources: env("FPS")},
			&cli.IntFlag{Name: "downscale", Aliases: []string{"d"}, Value: def.DownscaleFactor, Usage: "pixelation factor (<= 0 copies frames unchanged)", Sources: env("DOWNSCALE")},
			&cli.IntFlag{Name: "colors", Aliases: []string{"k"}, Value: def.Colors, Usage: "palette size", Sources: env("COLORS")},
			&cli.IntFlag{Name: "samples", Value: def.PaletteSamples, Usage: "frames sampled for the global palette", Sources: env("SAMPLES")},
			&cli.BoolFlag{Name: "no-global-palette", Usage: "quantize every frame independently", Sources: env("NO_GLOBAL_PALETTE")},
			&cli.FloatFlag{Name: "gamma", Value: def.Gamma, Usage: "gamma correction before pixelation", Sources: env("GAMMA")},
			&cli.FloatFlag{Name: "contrast", Value: def.Contrast, Usage: "contrast adjustment (-100..100) before pixelation", Sources: env("CONTRAST")},
			&cli.FloatFlag{Name: "sharpen", Value: def.Sharpen, Usage: "sharpen sigma before pixelation", Sources: env("SHARPEN")},
			&cli.IntFlag{Name: "gif-fps", Value: def.GIFFPS, Usage: "GIF frame rate", Sources: env("GIF_FPS")},
			&cli.IntFlag{Name: "skip", Value: def.GIFSkip, Usage: "use every Nth frame in the GIF", Sources: env("SKIP")},
			&cli.BoolFlag{Name: "hq", Usage: "high-quality background removal (isnet-general-use + alpha matting)", Sources: env("HQ")},
			&cli.StringFlag{Name: "rembg", Value: def.RembgCommand, Usage: "rembg executable", Sources: env("REMBG")},
			&cli.StringFlag{Name: "rembg-url", Usage: "rembg server base URL (uses HTTP instead of the CLI)", Sources: env("REMBG_URL")},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Value: def.Workers, Usage: "frames processed in parallel per stage", Sources: env("WORKERS")},
			&cli.DurationFlag{Name: "timeout", Value: def.ToolTimeout, Usage: "timeout for each external tool call", Sources: env("TIMEOUT")},
			&cli.IntFlag{Name: "preview-scale", Value: def.PreviewScale, Usage: "nearest-neighbour preview scale (0 disables)", Sources: env("PREVIEW_SCALE")},
			&cli.BoolFlag{Name: "no-atlas", Usage: "do not write the sprite sheet JSON", Sources: env("NO_ATLAS")},
			&cli.BoolFlag{Name: "outline", Usage: "trace per-frame outlines to SVG", Sources: env("OUTLINE")},
			&cli.BoolFlag{Name: "palette-export", Value: def.PaletteExport, Usage: "write palette.json and palette.svg", Sources: env("PALETTE_EXPORT")},
			&cli.StringFlag{Name: "s3-bucket", Usage: "upload artifacts to this S3 bucket", Sources: env("S3_BUCKET")},
			&cli.StringFlag{Name: "s3-prefix", Usage: "S3 key prefix", Sources: env("S3_PREFIX")},
			&cli.StringFlag{Name: "s3-region", Value: def.S3Region, Usage: "S3 region", Sources: env("S3_REGION")},
			&cli.BoolFlag{Name: "progress", Usage: "show per-stage progress bars", Sources: env("PROGRESS")},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging", Sources: env("VERBOSE")},
			&cli.StringFlag{Name: "color", Value: string(def.ColorMode), Usage: "log colours: auto, always or never", Sources: env("COLOR")},
			&cli.StringFlag{Name: "log-file", Usage: "also append logs to this file", Sources: env("LOG_FILE")},
			&cli.BoolFlag{Name: "check", Usage: "print tool availability and exit"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := configFromCommand(c)
			if cfg.InputVideo == "" && !cfg.CheckOnly {
				return cli.ShowAppHelp(c)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return action(ctx, cfg)
		},
	}
}

func configFromCommand(c *cli.Command) config.Config {
	cfg := config.DefaultConfig()
	cfg.InputVideo = c.Args().First()
	cfg.OutputDir = c.String("out")
	cfg.ExtractFPS = c.Int("fps")
	cfg.DownscaleFactor = c.Int("downscale")
	cfg.Colors = c.Int("colors")
	cfg.PaletteSamples = c.Int("samples")
	cfg.GlobalPalette = !c.Bool("no-global-palette")
	cfg.Gamma = c.Float("gamma")
	cfg.Contrast = c.Float("contrast")
	cfg.Sharpen = c.Float("sharpen")
	cfg.GIFFPS = c.Int("gif-fps")
	cfg.GIFSkip = c.Int("skip")
	cfg.HighQuality = c.Bool("hq")
	cfg.RembgCommand = c.String("rembg")
	cfg.RembgURL = c.String("rembg-url")
	cfg.Workers = c.Int("workers")
	cfg.ToolTimeout = c.Duration("timeout")
	cfg.PreviewScale = c.Int("preview-scale")
	cfg.Atlas = !c.Bool("no-atlas")
	cfg.Outline = c.Bool("outline")
	cfg.PaletteExport = c.Bool("palette-export")
	cfg.S3Bucket = c.String("s3-bucket")
	cfg.S3Prefix = c.String("s3-prefix")
	cfg.S3Region = c.String("s3-region")
	cfg.Progress = c.Bool("progress")
	cfg.Verbose = c.Bool("verbose")
	cfg.ColorMode = config.ColorMode(c.String("color"))
	cfg.LogFile = c.String("log-file")
	cfg.CheckOnly = c.Bool("check")
	return cfg
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.CheckOnly {
		check.RunCheck(cfg, log)
		return nil
	}

	start := time.Now()
	if err := runPipeline(ctx, cfg, log); err != nil {
		log.Error("%v", err)
		return err
	}
	log.Success("Done in %s, output in %s", time.Since(start).Round(time.Millisecond), cfg.Layout().Root)
	return nil
}
