package palette

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
	"github.com/lucasb-eyer/go-colorful"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

const swatchSize = 48

// Hex 返回调色板颜色的 #rrggbb 表示
func Hex(p *v2stypes.Palette) []string {
	out := make([]string, 0, p.Len())
	for _, c := range p.Colors() {
		col, _ := colorful.MakeColor(c)
		out = append(out, col.Hex())
	}
	return out
}

// WriteSwatch 输出 SVG 色板，每个颜色一个带编号和色值的方块
func WriteSwatch(w io.Writer, p *v2stypes.Palette) {
	hex := Hex(p)
	canvas := svg.New(w)
	canvas.Start(swatchSize*max(1, len(hex)), swatchSize+16)
	for i, h := range hex {
		x := i * swatchSize
		canvas.Rect(x, 0, swatchSize, swatchSize, "fill:"+h)
		canvas.Text(x+swatchSize/2, swatchSize+12, h, "font-family:monospace;font-size:9px;text-anchor:middle")
	}
	canvas.End()
}

type paletteFile struct {
	Source        string   `json:"source"`
	Count         int      `json:"count"`
	Colors        []string `json:"colors"`
	Dominant      string   `json:"dominant,omitempty"`
	DominantIndex *int     `json:"dominantIndex,omitempty"` // 与主色最接近的调色板下标
}

func newPaletteFile(p *v2stypes.Palette) paletteFile {
	pf := paletteFile{Source: p.Source, Count: p.Len(), Colors: Hex(p)}
	if d := p.Dominant; d.A != 0 {
		col, _ := colorful.MakeColor(d)
		pf.Dominant = col.Hex()
		idx := newMapper(p.Colors()).nearest(d.R, d.G, d.B)
		pf.DominantIndex = &idx
	}
	return pf
}

// Export 写出 palette.json 与 palette.svg
func Export(cfg config.Config, p *v2stypes.Palette, log *logging.Logger) error {
	if p.Len() == 0 {
		return nil
	}
	l := cfg.Layout()

	data, err := json.MarshalIndent(newPaletteFile(p), "", "  ")
	if err != nil {
		return err
	}
	if err := frameio.WriteFileAtomic(l.PaletteJSON, append(data, '\n')); err != nil {
		return fmt.Errorf("palette json: %w", err)
	}

	var buf bytes.Buffer
	WriteSwatch(&buf, p)
	if err := frameio.WriteFileAtomic(l.PaletteSVG, buf.Bytes()); err != nil {
		return fmt.Errorf("palette svg: %w", err)
	}
	log.Info("Palette exported to %s and %s", l.PaletteJSON, l.PaletteSVG)
	return nil
}
