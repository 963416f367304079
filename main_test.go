package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	. "github.com/onsi/gomega"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/frames2gif"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var got config.Config
	cmd := newCommand(func(_ context.Context, cfg config.Config) error {
		got = cfg
		return nil
	})
	err := cmd.Run(context.Background(), append([]string{"vid2sprite"}, args...))
	return got, err
}

func TestCommandDefaults(t *testing.T) {
	g := NewWithT(t)
	cfg, err := parse(t, "clip.mp4")
	g.Expect(err).NotTo(HaveOccurred())

	want := config.DefaultConfig()
	want.InputVideo = "clip.mp4"
	g.Expect(cfg).To(Equal(want))
}

func TestCommandFlagsAndEnv(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("VID2SPRITE_GIF_FPS", "12")

	cfg, err := parse(t,
		"--out", "sprites", "--colors", "8", "--downscale", "4", "--skip", "3",
		"--hq", "--no-atlas", "--no-global-palette", "-j", "3", "--timeout", "30s",
		"--rembg-url", "http://localhost:7000", "--color", "never", "clip.mp4")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.OutputDir).To(Equal("sprites"))
	g.Expect(cfg.Colors).To(Equal(8))
	g.Expect(cfg.DownscaleFactor).To(Equal(4))
	g.Expect(cfg.GIFSkip).To(Equal(3))
	g.Expect(cfg.GIFFPS).To(Equal(12))
	g.Expect(cfg.HighQuality).To(BeTrue())
	g.Expect(cfg.Atlas).To(BeFalse())
	g.Expect(cfg.GlobalPalette).To(BeFalse())
	g.Expect(cfg.Workers).To(Equal(3))
	g.Expect(cfg.ToolTimeout).To(Equal(30 * time.Second))
	g.Expect(cfg.RembgURL).To(Equal("http://localhost:7000"))
	g.Expect(cfg.ColorMode).To(Equal(config.ColorNever))
}

func TestCommandRejectsInvalidConfig(t *testing.T) {
	g := NewWithT(t)
	_, err := parse(t, "--colors", "0", "clip.mp4")
	g.Expect(err).To(MatchError(ContainSubstring("invalid color count 0")))

	_, err = parse(t, "--color", "rainbow", "clip.mp4")
	g.Expect(err).To(HaveOccurred())
}

func TestCommandCheckNeedsNoVideo(t *testing.T) {
	g := NewWithT(t)
	cfg, err := parse(t, "--check")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.CheckOnly).To(BeTrue())
}

// pixelFrames 在 PixelDir 中写入带透明背景的小帧
func pixelFrames(t *testing.T, cfg config.Config, indices ...int) v2stypes.Sequence {
	t.Helper()
	g := NewWithT(t)
	l := cfg.Layout()
	g.Expect(frameio.ResetDirs(l.StageDirs()...)).To(Succeed())
	for _, idx := range indices {
		img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
		for y := 1; y < 4; y++ {
			for x := 1; x < 5; x++ {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: uint8(idx * 20), A: 255})
			}
		}
		g.Expect(frameio.Save(filepath.Join(l.PixelDir, frameio.FrameName(idx)), img)).To(Succeed())
	}
	seq, err := frameio.Scan(l.PixelDir, v2stypes.StagePixel)
	g.Expect(err).NotTo(HaveOccurred())
	return seq
}

func TestFinishProducesArtifactsWhenGIFFails(t *testing.T) {
	g := NewWithT(t)
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Colors = 4
	cfg.PreviewScale = 2
	pixel := pixelFrames(t, cfg, 1, 2, 4)

	var logBuf bytes.Buffer
	log := logging.New(&logBuf, &logBuf, false)
	gif := frames2gif.NewEncoder(cfg, log)
	gif.Run = func(context.Context, *ffmpeg.Stream) error { return errors.New("ffmpeg missing") }

	p := &pipeline{cfg: cfg, log: log, gif: gif}
	g.Expect(p.finish(context.Background(), pixel)).To(Succeed())

	l := cfg.Layout()
	g.Expect(l.SheetPath).To(BeARegularFile())
	g.Expect(l.AtlasPath).To(BeARegularFile())
	g.Expect(l.PreviewPath).To(BeARegularFile())
	g.Expect(l.PaletteJSON).To(BeARegularFile())
	g.Expect(l.PaletteSVG).To(BeARegularFile())
	g.Expect(l.GIFPalette).NotTo(BeAnExistingFile())
	g.Expect(logBuf.String()).To(ContainSubstring("[ERROR] GIF creation failed"))

	sheet, _, err := frameio.Load(l.SheetPath)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sheet.Bounds().Size()).To(Equal(image.Pt(18, 4)))
	preview, _, err := frameio.Load(l.PreviewPath)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(preview.Bounds().Size()).To(Equal(image.Pt(36, 8)))

	final, err := frameio.Scan(l.FinalDir, v2stypes.StageFinal)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(final.Indices()).To(Equal([]int{1, 2, 4}))
}

func TestFinishEmptyInputHalts(t *testing.T) {
	g := NewWithT(t)
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	p := &pipeline{cfg: cfg, log: logging.Discard(), gif: frames2gif.NewEncoder(cfg, logging.Discard())}
	err := p.finish(context.Background(), v2stypes.Sequence{})
	g.Expect(err).To(HaveOccurred())
	g.Expect(cfg.Layout().SheetPath).NotTo(BeAnExistingFile())
}

// keyRecorder 记录上传的对象键
type keyRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *keyRecorder) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return r.UploadWithContext(context.Background(), in, opts...)
}

func (r *keyRecorder) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if _, err := io.Copy(io.Discard, in.Body); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, aws.StringValue(in.Key))
	return &s3manager.UploadOutput{Location: "s3://test/" + aws.StringValue(in.Key)}, nil
}

func TestPublishSkipsArtifactsFromEarlierRuns(t *testing.T) {
	g := NewWithT(t)
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Colors = 4
	cfg.GlobalPalette = false
	cfg.Outline = false
	cfg.S3Bucket = "sprites"
	l := cfg.Layout()

	g.Expect(os.MkdirAll(l.Root, 0o755)).To(Succeed())
	for _, old := range []string{l.GIFPath, l.PaletteJSON, l.PaletteSVG, l.OutlinesJSON, l.GIFPalette} {
		g.Expect(os.WriteFile(old, []byte("old run"), 0o644)).To(Succeed())
	}

	log := logging.Discard()
	gif := frames2gif.NewEncoder(cfg, log)
	gif.Run = func(context.Context, *ffmpeg.Stream) error { return errors.New("ffmpeg missing") }
	up := &keyRecorder{}
	p := &pipeline{cfg: cfg, log: log, gif: gif, uploader: up}

	g.Expect(p.prepare()).To(Succeed())
	pixel := pixelFrames(t, cfg, 1, 2)
	g.Expect(p.finish(context.Background(), pixel)).To(Succeed())

	sort.Strings(up.keys)
	g.Expect(up.keys).To(Equal([]string{
		"final_spritesheet.json",
		"final_spritesheet.png",
		"final_spritesheet_preview.png",
	}))
	g.Expect(l.GIFPath).NotTo(BeAnExistingFile())
	g.Expect(l.PaletteJSON).NotTo(BeAnExistingFile())
	g.Expect(l.OutlinesJSON).NotTo(BeAnExistingFile())
}
