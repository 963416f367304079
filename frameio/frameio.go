// Package frameio 负责阶段目录中帧文件的命名、扫描、读取与原子写入。
package frameio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	v2stypes "vid2sprite/type"
)

const (
	// Pattern 供 ffmpeg 输出使用的帧文件名模板
	Pattern = "frame_%04d.png"
	// Glob 匹配阶段目录中的全部 PNG 帧
	Glob = "frame_*.png"
)

var ErrMissingDir = errors.New("input directory missing or empty")

var frameRe = regexp.MustCompile(`(?i)^frame_(\d+)\.(png|jpe?g)$`)

// FrameName 返回序号对应的文件名，如 frame_0001.png
func FrameName(index int) string {
	return fmt.Sprintf(Pattern, index)
}

// ParseIndex 从文件名中解析帧序号
func ParseIndex(name string) (int, bool) {
	m := frameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ResetDirs 清空并重建目录
func ResetDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("reset %s: %w", d, err)
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("reset %s: %w", d, err)
		}
	}
	return nil
}

// RemoveFiles 删除文件，不存在的跳过
func RemoveFiles(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Scan 读取目录中的帧文件并按序号排序。序号可以不连续。
// 目录不存在或没有任何帧时返回 ErrMissingDir。
func Scan(dir string, stage v2stypes.Stage) (v2stypes.Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v2stypes.Sequence{}, fmt.Errorf("%s: %w", dir, ErrMissingDir)
		}
		return v2stypes.Sequence{}, err
	}

	var frames []v2stypes.Frame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := ParseIndex(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		w, h := probeSize(path)
		frames = append(frames, v2stypes.Frame{Index: idx, Path: path, Width: w, Height: h, Stage: stage})
	}
	if len(frames) == 0 {
		return v2stypes.Sequence{}, fmt.Errorf("%s: %w", dir, ErrMissingDir)
	}
	// 同一序号出现多个扩展名时保留第一个
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Path < frames[j].Path })
	seen := make(map[int]bool, len(frames))
	uniq := frames[:0]
	for _, f := range frames {
		if seen[f.Index] {
			continue
		}
		seen[f.Index] = true
		uniq = append(uniq, f)
	}
	return v2stypes.NewSequence(stage, dir, uniq), nil
}

// 只读取头部获取尺寸，失败时返回 0
func probeSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// Load 读取一帧并转换为原点在 (0,0) 的 NRGBA。
// coerced 表示源图不是 8 位 RGBA 类格式，发生了格式转换。
func Load(path string) (*image.NRGBA, bool, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, false, err
	}
	return ToNRGBA(img)
}

// ToNRGBA 将任意图像转换为 NRGBA
func ToNRGBA(img image.Image) (*image.NRGBA, bool, error) {
	if img == nil {
		return nil, false, errors.New("nil image")
	}
	switch src := img.(type) {
	case *image.NRGBA:
		if src.Rect.Min == (image.Point{}) {
			return src, false, nil
		}
		return imaging.Clone(src), false, nil
	case *image.RGBA:
		return imaging.Clone(src), false, nil
	default:
		return imaging.Clone(img), true, nil
	}
}

// Save 以 PNG 格式原子写入（临时文件 + rename）
func Save(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// CopyFile 原样复制文件内容
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return WriteFileAtomic(dst, data)
}

// WriteFileAtomic 写入同目录下的临时文件后 rename 覆盖目标，
// 失败时不会留下半写的目标文件。
func WriteFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := writeAll(tmp, data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
