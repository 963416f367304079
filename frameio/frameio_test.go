package frameio

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	. "github.com/onsi/gomega"

	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestFrameName(t *testing.T) {
	g := NewWithT(t)
	g.Expect(FrameName(1)).To(Equal("frame_0001.png"))
	g.Expect(FrameName(12345)).To(Equal("frame_12345.png"))

	n, ok := ParseIndex("frame_0042.PNG")
	g.Expect(ok).To(BeTrue())
	g.Expect(n).To(Equal(42))
	_, ok = ParseIndex("palette.png")
	g.Expect(ok).To(BeFalse())
}

func TestScanToleratesGaps(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	for _, idx := range []int{3, 1, 7} {
		g.Expect(Save(filepath.Join(dir, FrameName(idx)), solid(4, 2, color.NRGBA{A: 255}))).To(Succeed())
	}
	g.Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)).To(Succeed())

	seq, err := Scan(dir, v2stypes.StageRaw)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seq.Indices()).To(Equal([]int{1, 3, 7}))
	g.Expect(seq.Frames[0].Width).To(Equal(4))
	g.Expect(seq.Frames[0].Height).To(Equal(2))
	g.Expect(seq.Frames[0].Stage).To(Equal(v2stypes.StageRaw))
}

func TestScanMissingOrEmpty(t *testing.T) {
	g := NewWithT(t)
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), v2stypes.StageRaw)
	g.Expect(errors.Is(err, ErrMissingDir)).To(BeTrue())

	_, err = Scan(t.TempDir(), v2stypes.StageRaw)
	g.Expect(errors.Is(err, ErrMissingDir)).To(BeTrue())
}

func TestSaveLoadRoundTripKeepsAlpha(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), FrameName(1))
	src := solid(3, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 77})
	g.Expect(Save(path, src)).To(Succeed())

	got, coerced, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(coerced).To(BeFalse())
	g.Expect(got.NRGBAAt(1, 1)).To(Equal(color.NRGBA{R: 200, G: 100, B: 50, A: 77}))
	g.Expect(got.NRGBAAt(0, 0)).To(Equal(color.NRGBA{R: 10, G: 20, B: 30, A: 255}))

	entries, _ := os.ReadDir(filepath.Dir(path))
	g.Expect(entries).To(HaveLen(1))
}

func TestToNRGBACoercesGray(t *testing.T) {
	g := NewWithT(t)
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(0, 0, color.Gray{Y: 9})
	out, coerced, err := ToNRGBA(gray)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(coerced).To(BeTrue())
	g.Expect(out.NRGBAAt(0, 0)).To(Equal(color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
}

func TestResetDirs(t *testing.T) {
	g := NewWithT(t)
	dir := filepath.Join(t.TempDir(), "01_raw_frames")
	g.Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(dir, "stale.png"), []byte("x"), 0o644)).To(Succeed())

	g.Expect(ResetDirs(dir)).To(Succeed())
	entries, err := os.ReadDir(dir)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entries).To(BeEmpty())
}

func TestRemoveFiles(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	old := filepath.Join(dir, "final_animation.gif")
	g.Expect(os.WriteFile(old, []byte("x"), 0o644)).To(Succeed())

	g.Expect(RemoveFiles(old, filepath.Join(dir, "palette.json"))).To(Succeed())
	g.Expect(old).NotTo(BeAnExistingFile())
}

func TestMapSkipsFailuresAndKeepsOrder(t *testing.T) {
	g := NewWithT(t)
	in := v2stypes.NewSequence(v2stypes.StageRaw, "in", []v2stypes.Frame{
		{Index: 1}, {Index: 2}, {Index: 3}, {Index: 4}, {Index: 5},
	})
	out := t.TempDir()
	var calls int32

	seq, err := Map(context.Background(), in, out, v2stypes.StagePixel, Options{Workers: 3, Label: "test"}, logging.Discard(),
		func(_ context.Context, f v2stypes.Frame, dst string) (int, int, error) {
			atomic.AddInt32(&calls, 1)
			if f.Index == 2 {
				return 0, 0, errors.New("broken")
			}
			return f.Index, 1, os.WriteFile(dst, []byte("ok"), 0o644)
		})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(atomic.LoadInt32(&calls)).To(BeEquivalentTo(5))
	g.Expect(seq.Indices()).To(Equal([]int{1, 3, 4, 5}))
	g.Expect(seq.Stage).To(Equal(v2stypes.StagePixel))
	g.Expect(seq.Frames[1].Path).To(Equal(filepath.Join(out, "frame_0003.png")))
	g.Expect(seq.Frames[1].Width).To(Equal(3))
}

func TestMapCancelled(t *testing.T) {
	g := NewWithT(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := v2stypes.NewSequence(v2stypes.StageRaw, "in", []v2stypes.Frame{{Index: 1}})
	_, err := Map(ctx, in, t.TempDir(), v2stypes.StagePixel, Options{}, logging.Discard(),
		func(context.Context, v2stypes.Frame, string) (int, int, error) { return 1, 1, nil })
	g.Expect(err).To(MatchError(context.Canceled))
}
