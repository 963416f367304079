package outline

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rustyoz/svg"

	v2stypes "vid2sprite/type"
)

// ParseFrame 解析单帧 SVG，返回 viewBox 与全部路径
func ParseFrame(frame v2stypes.FrameSVG) (v2stypes.FrameOutline, error) {
	parsed, err := svg.ParseSvg(frame.SVGData, "frame", 1.0)
	if err != nil {
		return v2stypes.FrameOutline{}, err
	}
	return v2stypes.FrameOutline{
		FrameIndex: frame.FrameIndex,
		ViewBox:    parseViewBox(parsed.ViewBox),
		Paths:      extractPaths(frame.SVGData),
	}, nil
}

// "0 0 80 45" -> [0 0 80 45]，格式不对时返回 nil
func parseViewBox(box string) []float64 {
	fields := strings.FieldsFunc(box, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return nil
	}
	out := make([]float64, 4)
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		out[i] = v
	}
	return out
}

// extractPaths 从 SVG 字符串中提取所有 <path> 的 d 属性（包括 <g> 内嵌套的）。
// 祖先元素上的 translate/scale 会折算进路径坐标，结果以 viewBox 左上角为原点。
func extractPaths(data string) []string {
	dec := xml.NewDecoder(bytes.NewReader([]byte(data)))
	paths := []string{}
	stack := []transform{identity}
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return paths
			}
			break
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.StartElement:
			cur := stack[len(stack)-1]
			var d string
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "transform":
					if tr, ok := parseTransform(a.Value); ok {
						cur = cur.then(tr)
					}
				case "d":
					d = strings.TrimSpace(a.Value)
				}
			}
			stack = append(stack, cur)
			if t.Name.Local != "path" {
				continue
			}
			if cur != identity {
				d = cur.apply(d)
			}
			paths = append(paths, d)
		}
	}
	return paths
}
