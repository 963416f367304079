package palette

import (
	"image"
	"image/color"
	"sort"

	v2stypes "vid2sprite/type"
)

// histogram 统计 RGB 颜色出现次数。opaqueOnly 时忽略完全透明的像素，
// 若整张图都透明则退回统计全部像素。
func histogram(img *image.NRGBA, opaqueOnly bool) map[v2stypes.Pixel]int {
	hist := make(map[v2stypes.Pixel]int)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			if opaqueOnly && img.Pix[i+3] == 0 {
				continue
			}
			hist[v2stypes.Pixel{R: int(img.Pix[i]), G: int(img.Pix[i+1]), B: int(img.Pix[i+2])}]++
		}
	}
	if opaqueOnly && len(hist) == 0 && !b.Empty() {
		return histogram(img, false)
	}
	return hist
}

func less(a, b v2stypes.Pixel) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.B < b.B
}

// 计算盒子范围
func calculateBoxRange(box *v2stypes.Box) {
	if len(box.Pixels) == 0 {
		return
	}

	box.RMin, box.RMax = 255, 0
	box.GMin, box.GMax = 255, 0
	box.BMin, box.BMax = 255, 0

	for _, p := range box.Pixels {
		box.RMin = min(box.RMin, p.R)
		box.RMax = max(box.RMax, p.R)
		box.GMin = min(box.GMin, p.G)
		box.GMax = max(box.GMax, p.G)
		box.BMin = min(box.BMin, p.B)
		box.BMax = max(box.BMax, p.B)
	}
}

func boxRange(box *v2stypes.Box) int {
	return max(box.RMax-box.RMin, box.GMax-box.GMin, box.BMax-box.BMin)
}

// channelOf 取像素在指定通道上的值，0=R 1=G 2=B
func channelOf(p v2stypes.Pixel, ch int) int {
	switch ch {
	case 0:
		return p.R
	case 1:
		return p.G
	default:
		return p.B
	}
}

// medianCut 执行加权中位切分。
// 输入相同则输出相同：颜色先按 RGB 排序，排序全部稳定，并列时取靠前的盒子/通道。
func medianCut(hist map[v2stypes.Pixel]int, colorCount int) []color.RGBA {
	if colorCount <= 0 || len(hist) == 0 {
		return nil
	}

	pixels := make([]v2stypes.Pixel, 0, len(hist))
	for p := range hist {
		pixels = append(pixels, p)
	}
	sort.Slice(pixels, func(i, j int) bool { return less(pixels[i], pixels[j]) })
	weights := make([]int, len(pixels))
	for i, p := range pixels {
		weights[i] = hist[p]
	}

	// 初始盒子
	initialBox := &v2stypes.Box{Pixels: pixels, Weights: weights}
	calculateBoxRange(initialBox)
	boxes := []*v2stypes.Box{initialBox}

	// 不断分割盒子
	for len(boxes) < colorCount {
		// 找到范围最大且可分的盒子
		splitAt := -1
		maxRange := -1
		for i, box := range boxes {
			if len(box.Pixels) < 2 {
				continue
			}
			if r := boxRange(box); r > maxRange {
				maxRange = r
				splitAt = i
			}
		}
		if splitAt < 0 {
			break
		}
		box1, box2 := splitBox(boxes[splitAt])

		// 替换盒子
		boxes = append(boxes[:splitAt], append([]*v2stypes.Box{box1, box2}, boxes[splitAt+1:]...)...)
	}

	// 计算每个盒子的加权平均颜色
	result := make([]color.RGBA, 0, len(boxes))
	for _, box := range boxes {
		var rSum, gSum, bSum, count int
		for i, p := range box.Pixels {
			w := box.Weights[i]
			rSum += p.R * w
			gSum += p.G * w
			bSum += p.B * w
			count += w
		}
		if count == 0 {
			continue
		}
		result = append(result, color.RGBA{
			R: uint8((rSum + count/2) / count),
			G: uint8((gSum + count/2) / count),
			B: uint8((bSum + count/2) / count),
			A: 255,
		})
	}
	return result
}

// splitBox 在最宽通道上按加权中位数切成两个非空盒子
func splitBox(box *v2stypes.Box) (*v2stypes.Box, *v2stypes.Box) {
	// 选择分割通道，并列时 R > G > B
	rRange := box.RMax - box.RMin
	gRange := box.GMax - box.GMin
	bRange := box.BMax - box.BMin
	ch := 2
	if rRange >= gRange && rRange >= bRange {
		ch = 0
	} else if gRange >= bRange {
		ch = 1
	}

	n := len(box.Pixels)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := box.Pixels[order[i]], box.Pixels[order[j]]
		if ca, cb := channelOf(a, ch), channelOf(b, ch); ca != cb {
			return ca < cb
		}
		return less(a, b)
	})

	total := 0
	for _, w := range box.Weights {
		total += w
	}
	cut, acc := n-1, 0
	for i, idx := range order {
		acc += box.Weights[idx]
		if 2*acc >= total {
			cut = i + 1
			break
		}
	}
	if cut < 1 {
		cut = 1
	}
	if cut > n-1 {
		cut = n - 1
	}

	part := func(ids []int) *v2stypes.Box {
		b := &v2stypes.Box{
			Pixels:  make([]v2stypes.Pixel, len(ids)),
			Weights: make([]int, len(ids)),
		}
		for i, idx := range ids {
			b.Pixels[i] = box.Pixels[idx]
			b.Weights[i] = box.Weights[idx]
		}
		calculateBoxRange(b)
		return b
	}
	return part(order[:cut]), part(order[cut:])
}
