package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vid2sprite/config"
)

type palette struct {
	red, green, yellow, orange, blue, cyan, reset string
}

var ansi = palette{
	red:    "\033[1;91m",
	green:  "\033[1;92m",
	yellow: "\033[1;93m",
	orange: "\033[1;38;5;208m",
	blue:   "\033[1;94m",
	cyan:   "\033[1;96m",
	reset:  "\033[0m",
}

// Logger 分级日志，可选颜色与文件输出
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	file    *os.File
	colors  palette
	verbose bool
	now     func() time.Time
}

// NewLogger 按配置初始化颜色并按需打开日志文件；设置了 LogFile 时需调用 Close
func NewLogger(cfg config.Config) (*Logger, error) {
	l := &Logger{out: os.Stdout, errOut: os.Stderr, verbose: cfg.Verbose, now: time.Now}
	enable := false
	switch cfg.ColorMode {
	case config.ColorAlways:
		enable = true
	case config.ColorAuto:
		enable = isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
	if enable {
		l.colors = ansi
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

// New 构造写入指定 writer 的无颜色 Logger
func New(out, errOut io.Writer, verbose bool) *Logger {
	return &Logger{out: out, errOut: errOut, verbose: verbose, now: time.Now}
}

// Discard 丢弃所有输出，测试使用
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Verbose 是否输出 DEBUG
func (l *Logger) Verbose() bool { return l.verbose }

func (l *Logger) line(level, color, text string) {
	ts := l.now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	plain := ts + " [" + level + "] " + text + "\n"
	out := l.out
	if level == "ERROR" {
		out = l.errOut
	}
	if color != "" {
		_, _ = io.WriteString(out, ts+" "+color+"["+level+"]"+l.colors.reset+" "+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if l.file != nil {
		_, _ = io.WriteString(l.file, plain)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", l.colors.blue, fmt.Sprintf(format, args...))
}

func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", l.colors.green, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", l.colors.yellow, fmt.Sprintf(format, args...))
}

// Error 同时写入错误输出
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", l.colors.red, fmt.Sprintf(format, args...))
}

// Outlier 标记统计上的异常帧
func (l *Logger) Outlier(format string, args ...interface{}) {
	l.line("OUTLIER", l.colors.orange, fmt.Sprintf(format, args...))
}

// Debug 仅在 verbose 时输出
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.line("DEBUG", l.colors.cyan, fmt.Sprintf(format, args...))
}
