// Package frames2gif 使用 ffmpeg 两遍编码（palettegen + paletteuse）把帧序列转为循环 GIF。
package frames2gif

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"vid2sprite/config"
	"vid2sprite/frameio"
	"vid2sprite/logging"
	v2stypes "vid2sprite/type"
)

var ErrNoFrames = errors.New("no frames for gif")

const (
	PassPalette = "palettegen"
	PassEncode  = "paletteuse"
)

// ToolError 记录失败的编码阶段与 ffmpeg 的错误输出
type ToolError struct {
	Pass   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg %s: %v", e.Pass, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s: %v: %s", e.Pass, e.Err, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Runner 执行一条 ffmpeg 命令，测试中可替换
type Runner func(ctx context.Context, s *ffmpeg.Stream) error

// ctx 已由 pass 写入 s.Context
func defaultRunner(_ context.Context, s *ffmpeg.Stream) error {
	return s.Run()
}

// FrameCount 每 skip 帧取一帧后的输出帧数，即 ceil(available/skip)
func FrameCount(available, skip int) int {
	if available <= 0 {
		return 0
	}
	if skip < 1 {
		skip = 1
	}
	return (available + skip - 1) / skip
}

// Encoder 两遍 GIF 编码器
type Encoder struct {
	FPS         int // 输出帧率
	InputFPS    int // 输入帧序列的名义帧率
	Skip        int
	PalettePath string
	Timeout     time.Duration
	Run         Runner
	Log         *logging.Logger
}

// NewEncoder 按配置构造编码器，调色板临时文件放在输出根目录
func NewEncoder(cfg config.Config, log *logging.Logger) *Encoder {
	return &Encoder{
		FPS:         cfg.GIFFPS,
		InputFPS:    cfg.ExtractFPS,
		Skip:        cfg.EffectiveSkip(),
		PalettePath: cfg.Layout().GIFPalette,
		Timeout:     cfg.ToolTimeout,
		Run:         defaultRunner,
		Log:         log,
	}
}

var globMeta = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`)

// globPattern 转义目录中的通配符，只保留文件名部分的 glob
func globPattern(dir string) string {
	return globMeta.Replace(filepath.ToSlash(dir)) + "/" + frameio.Glob
}

func (e *Encoder) input(dir string) *ffmpeg.Stream {
	// glob 输入容忍序号空缺
	return ffmpeg.Input(globPattern(dir), ffmpeg.KwArgs{
		"pattern_type": "glob",
		"framerate":    strconv.Itoa(max(1, e.InputFPS)),
	})
}

// chain 抽帧并重设时间戳：framestep 保留第 0、R、2R... 帧
func (e *Encoder) chain(s *ffmpeg.Stream) *ffmpeg.Stream {
	fps := strconv.Itoa(e.FPS)
	return s.
		Filter("framestep", ffmpeg.Args{strconv.Itoa(max(1, e.Skip))}).
		Filter("setpts", ffmpeg.Args{"N/" + fps + "/TB"}).
		Filter("fps", ffmpeg.Args{fps})
}

func (e *Encoder) paletteStream(dir string, frames int) *ffmpeg.Stream {
	return e.chain(e.input(dir)).
		Filter("palettegen", ffmpeg.Args{}).
		Output(e.PalettePath, ffmpeg.KwArgs{"frames:v": frames}).
		OverWriteOutput()
}

func (e *Encoder) gifStream(dir, out string, frames int) *ffmpeg.Stream {
	video := e.chain(e.input(dir))
	pal := ffmpeg.Input(e.PalettePath)
	return ffmpeg.Filter([]*ffmpeg.Stream{video, pal}, "paletteuse", ffmpeg.Args{}).
		Output(out, ffmpeg.KwArgs{"loop": 0, "frames:v": frames}).
		OverWriteOutput()
}

// Encode 生成 GIF。中间调色板文件在任何返回路径上都会被删除。
func (e *Encoder) Encode(ctx context.Context, in v2stypes.Sequence, out string) error {
	if in.Empty() {
		return ErrNoFrames
	}
	if e.FPS <= 0 {
		return fmt.Errorf("invalid gif fps %d", e.FPS)
	}
	run := e.Run
	if run == nil {
		run = defaultRunner
	}
	log := e.Log
	if log == nil {
		log = logging.Discard()
	}

	frames := FrameCount(in.Len(), e.Skip)
	log.Info("Encoding GIF: %d of %d frames (every %d), %d fps", frames, in.Len(), max(1, e.Skip), e.FPS)

	defer func() {
		if err := os.Remove(e.PalettePath); err == nil {
			log.Debug("Removed %s", e.PalettePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn("remove %s: %v", e.PalettePath, err)
		}
	}()

	if err := e.pass(ctx, run, PassPalette, e.paletteStream(in.Dir, frames)); err != nil {
		return err
	}
	if err := e.pass(ctx, run, PassEncode, e.gifStream(in.Dir, out, frames)); err != nil {
		return err
	}
	log.Success("GIF written to %s", out)
	return nil
}

func (e *Encoder) pass(ctx context.Context, run Runner, name string, s *ffmpeg.Stream) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	// WithErrorOutput 把 writer 存在 s.Context 中，必须在设置 Context 之后调用
	var stderr bytes.Buffer
	s.Context = ctx
	s = s.WithErrorOutput(&stderr)
	if e.Log != nil {
		e.Log.Debug("ffmpeg %s", strings.Join(s.GetArgs(), " "))
	}
	if err := run(ctx, s); err != nil {
		return &ToolError{Pass: name, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}
