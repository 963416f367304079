package outline

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// transform 分组上的平移加缩放：x' = tx + sx*x，y' = ty + sy*y
type transform struct {
	tx, ty, sx, sy float64
}

var identity = transform{sx: 1, sy: 1}

// then 先应用 inner 再应用 t
func (t transform) then(inner transform) transform {
	return transform{
		tx: t.tx + t.sx*inner.tx,
		ty: t.ty + t.sy*inner.ty,
		sx: t.sx * inner.sx,
		sy: t.sy * inner.sy,
	}
}

const num = `(-?[0-9]*\.?[0-9]+(?:[eE][-+]?\d+)?)`

var (
	translateAttr = regexp.MustCompile(`translate\(\s*` + num + `(?:\s*[,\s]\s*` + num + `)?\s*\)`)
	scaleAttr     = regexp.MustCompile(`scale\(\s*` + num + `(?:\s*[,\s]\s*` + num + `)?\s*\)`)
	pathToken     = regexp.MustCompile(`[MLHVCSQTAZmlhvcsqtaz]|` + num)
)

// parseTransform 识别 transform 属性里的 translate 与 scale，
// 其他变换（rotate、matrix 等）不支持
func parseTransform(attr string) (transform, bool) {
	if strings.Contains(attr, "rotate") || strings.Contains(attr, "matrix") || strings.Contains(attr, "skew") {
		return identity, false
	}
	t, found := identity, false
	if m := translateAttr.FindStringSubmatch(attr); m != nil {
		t.tx, _ = strconv.ParseFloat(m[1], 64)
		if m[2] != "" {
			t.ty, _ = strconv.ParseFloat(m[2], 64)
		}
		found = true
	}
	if m := scaleAttr.FindStringSubmatch(attr); m != nil {
		t.sx, _ = strconv.ParseFloat(m[1], 64)
		t.sy = t.sx
		if m[2] != "" {
			t.sy, _ = strconv.ParseFloat(m[2], 64)
		}
		found = true
	}
	return t, found
}

// 每个命令一组参数的个数
func groupSize(cmd byte) int {
	switch cmd | 0x20 {
	case 'h', 'v':
		return 1
	case 'm', 'l', 't':
		return 2
	case 's', 'q':
		return 4
	case 'c':
		return 6
	case 'a':
		return 7
	}
	return 0
}

func (t transform) x(v float64, abs bool) float64 {
	if abs {
		return t.tx + t.sx*v
	}
	return t.sx * v
}

func (t transform) y(v float64, abs bool) float64 {
	if abs {
		return t.ty + t.sy*v
	}
	return t.sy * v
}

func (t transform) group(cmd byte, group []float64, abs bool) {
	switch cmd | 0x20 {
	case 'h':
		group[0] = t.x(group[0], abs)
	case 'v':
		group[0] = t.y(group[0], abs)
	case 'a':
		if len(group) < 7 {
			return
		}
		group[0] *= math.Abs(t.sx)
		group[1] *= math.Abs(t.sy)
		// 镜像时旋转角和弧线方向都取反
		if t.sx*t.sy < 0 {
			group[2] = -group[2]
			group[4] = 1 - group[4]
		}
		group[5] = t.x(group[5], abs)
		group[6] = t.y(group[6], abs)
	default:
		for i := 0; i+1 < len(group); i += 2 {
			group[i] = t.x(group[i], abs)
			group[i+1] = t.y(group[i+1], abs)
		}
	}
}

func formatCoord(v float64) string {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		v = 0 // 消除 -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// apply 把路径数据换算到外层坐标系
func (t transform) apply(d string) string {
	tokens := pathToken.FindAllString(d, -1)
	out := make([]string, 0, len(tokens))
	var cmd byte
	var params []float64
	first := true

	flush := func() {
		size := groupSize(cmd)
		if size == 0 {
			params = params[:0]
			return
		}
		for i := 0; i < len(params); i += size {
			group := params[i:min(i+size, len(params))]
			abs := cmd >= 'A' && cmd <= 'Z'
			// 路径开头的 m 按绝对坐标处理
			if cmd == 'm' && first && i == 0 {
				abs = true
			}
			t.group(cmd, group, abs)
			strs := make([]string, len(group))
			for j, v := range group {
				strs[j] = formatCoord(v)
			}
			out = append(out, strings.Join(strs, " "))
		}
		params = params[:0]
		first = false
	}

	for _, tok := range tokens {
		if len(tok) == 1 && strings.ContainsAny(tok, "MLHVCSQTAZmlhvcsqtaz") {
			if cmd != 0 {
				flush()
			}
			cmd = tok[0]
			out = append(out, tok)
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		params = append(params, v)
	}
	if cmd != 0 {
		flush()
	}
	return strings.Join(out, " ")
}
