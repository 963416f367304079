package palette

import (
	"image"
	"image/color"
)

// mapper 将 RGB 映射到调色板中最近的颜色（平方欧氏距离，距离相同取下标小者），
// 结果按颜色缓存。单个 mapper 不可并发使用。
type mapper struct {
	pal   []color.RGBA
	cache map[uint32]int
}

func newMapper(pal []color.RGBA) *mapper {
	return &mapper{pal: pal, cache: make(map[uint32]int)}
}

func (m *mapper) nearest(r, g, b uint8) int {
	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if idx, ok := m.cache[key]; ok {
		return idx
	}

	// 找最近颜色
	bestIdx := 0
	bestDist := int(^uint(0) >> 1)
	for i, c := range m.pal {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}
	m.cache[key] = bestIdx
	return bestIdx
}

// MapImage 将 src 的 RGB 映射到调色板，不做抖动，alpha 字节原样保留
func MapImage(src *image.NRGBA, pal []color.RGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	if len(pal) == 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}
	m := newMapper(pal)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := src.PixOffset(b.Min.X, y)
		di := dst.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, si, di = x+1, si+4, di+4 {
			c := m.pal[m.nearest(src.Pix[si], src.Pix[si+1], src.Pix[si+2])]
			dst.Pix[di] = c.R
			dst.Pix[di+1] = c.G
			dst.Pix[di+2] = c.B
			dst.Pix[di+3] = src.Pix[si+3]
		}
	}
	return dst
}
