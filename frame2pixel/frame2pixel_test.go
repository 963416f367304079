package frame2pixel

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h, d     int
		tw, th      int
		wantClamped bool
	}{
		{640, 360, 8, 80, 45, false},
		{641, 367, 8, 80, 45, false},
		{7, 100, 8, 1, 12, true},
		{3, 3, 8, 1, 1, true},
		{10, 10, 1, 10, 10, false},
		{10, 6, 0, 10, 6, false},
		{10, 6, -4, 10, 6, false},
	}
	for _, tt := range tests {
		g := NewWithT(t)
		tw, th, clamped := TargetSize(tt.w, tt.h, tt.d)
		g.Expect([]int{tw, th}).To(Equal([]int{tt.tw, tt.th}), "%dx%d/%d", tt.w, tt.h, tt.d)
		g.Expect(clamped).To(Equal(tt.wantClamped))
	}
}

func TestPixelateAveragesBlocks(t *testing.T) {
	g := NewWithT(t)
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	// 左块全黑、右块全白
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(0)
			if x >= 2 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	out := Pixelate(img, 2)
	g.Expect(out.Bounds().Dx()).To(Equal(2))
	g.Expect(out.Bounds().Dy()).To(Equal(1))
	g.Expect(out.NRGBAAt(0, 0)).To(Equal(color.NRGBA{A: 255}))
	g.Expect(out.NRGBAAt(1, 0)).To(Equal(color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
}

func TestAdjustDefaultsAreIdentity(t *testing.T) {
	g := NewWithT(t)
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	g.Expect(Adjust(img, config.DefaultConfig())).To(BeIdenticalTo(image.Image(img)))
}

func setup(t *testing.T, d int, sizes map[int][2]int) (config.Config, v2stypes.Sequence) {
	t.Helper()
	g := NewWithT(t)
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.DownscaleFactor = d
	l := cfg.Layout()
	g.Expect(frameio.ResetDirs(l.NoBGDir, l.PixelDir)).To(Succeed())
	for idx, s := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, s[0], s[1]))
		for i := range img.Pix {
			img.Pix[i] = uint8(i * 7)
		}
		g.Expect(frameio.Save(filepath.Join(l.NoBGDir, frameio.FrameName(idx)), img)).To(Succeed())
	}
	seq, err := frameio.Scan(l.NoBGDir, v2stypes.StageNoBG)
	g.Expect(err).NotTo(HaveOccurred())
	return cfg, seq
}

func TestRunDownscales(t *testing.T) {
	g := NewWithT(t)
	cfg, in := setup(t, 8, map[int][2]int{1: {64, 40}, 4: {5, 17}})

	out, err := Run(context.Background(), cfg, in, logging.Discard())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out.Indices()).To(Equal([]int{1, 4}))
	g.Expect(out.Frames[0].Width).To(Equal(8))
	g.Expect(out.Frames[0].Height).To(Equal(5))
	g.Expect(out.Frames[1].Width).To(Equal(1))
	g.Expect(out.Frames[1].Height).To(Equal(2))

	img, _, err := frameio.Load(out.Frames[1].Path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(img.Bounds().Size()).To(Equal(image.Pt(1, 2)))
}

func TestRunNonPositiveFactorCopies(t *testing.T) {
	g := NewWithT(t)
	cfg, in := setup(t, 0, map[int][2]int{2: {9, 7}})

	var logBuf bytes.Buffer
	log := logging.New(&logBuf, &logBuf, false)
	out, err := Run(context.Background(), cfg, in, log)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(logBuf.String()).To(ContainSubstring("[WARN] Downscale factor 0"))

	src, _ := os.ReadFile(in.Frames[0].Path)
	dst, _ := os.ReadFile(out.Frames[0].Path)
	g.Expect(dst).To(Equal(src))
	g.Expect(out.Frames[0].Width).To(Equal(9))
}

func TestRunEmptyInput(t *testing.T) {
	g := NewWithT(t)
	_, err := Run(context.Background(), config.DefaultConfig(), v2stypes.Sequence{}, logging.Discard())
	g.Expect(errors.Is(err, ErrEmptyInput)).To(BeTrue())
}
