// Package report 统计最终帧的不透明覆盖率，标记偏离均值过多的帧。
// 覆盖率骤降或骤升通常意味着该帧背景移除失败。
package report

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

// OutlierSigma 偏离均值超过该倍数标准差即视为异常
const OutlierSigma = 2.0

// FrameStat 单帧覆盖率
type FrameStat struct {
	Index    int
	Coverage float64
}

// Summary 一次运行的覆盖率统计
type Summary struct {
	Frames   []FrameStat
	Mean     float64
	StdDev   float64
	Outliers []FrameStat
}

// Coverage alpha 非零像素所占比例
func Coverage(img *image.NRGBA) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			if img.Pix[i+3] != 0 {
				n++
			}
		}
	}
	return float64(n) / float64(total)
}

// Analyze 计算均值、标准差与异常帧
func Analyze(frames []FrameStat) Summary {
	s := Summary{Frames: frames}
	if len(frames) == 0 {
		return s
	}
	xs := make([]float64, len(frames))
	for i, f := range frames {
		xs[i] = f.Coverage
	}
	if len(xs) == 1 {
		s.Mean = xs[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if s.StdDev == 0 {
		return s
	}
	for _, f := range frames {
		if math.Abs(f.Coverage-s.Mean) > OutlierSigma*s.StdDev {
			s.Outliers = append(s.Outliers, f)
		}
	}
	return s
}

// Run 加载序列中的每一帧并输出统计结果，无法加载的帧跳过
func Run(in v2stypes.Sequence, log *logging.Logger) Summary {
	stats := make([]FrameStat, 0, in.Len())
	for _, f := range in.Frames {
		img, _, err := frameio.Load(f.Path)
		if err != nil {
			log.Warn("report %s: %v", frameio.FrameName(f.Index), err)
			continue
		}
		stats = append(stats, FrameStat{Index: f.Index, Coverage: Coverage(img)})
	}

	s := Analyze(stats)
	log.Info("Coverage over %d frames: mean %.1f%%, stddev %.1f%%", len(stats), s.Mean*100, s.StdDev*100)
	for _, o := range s.Outliers {
		log.Outlier("%s coverage %.1f%% (mean %.1f%%), check background removal",
			frameio.FrameName(o.Index), o.Coverage*100, s.Mean*100)
	}
	return s
}
