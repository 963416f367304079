// Package check 在流水线启动前检查外部工具（ffmpeg、ffprobe、rembg）是否可用。
package check

import (
	"errors"
	"net/url"
	"os/exec"
	"strings"

	"vid2sprite/config"
)

// CheckDeps 返回的哨兵错误
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
	ErrRembgNotFound   = errors.New("rembg not found on PATH (install rembg[cli] or use --rembg-url)")
	ErrBadRembgURL     = errors.New("invalid rembg service url")
)

// Logger RunCheck 需要的最小日志接口
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

var lookPath = exec.LookPath

// CheckDeps 检查本次运行必需的工具，缺失时立即失败
func CheckDeps(cfg config.Config) error {
	if _, err := lookPath("ffmpeg"); err != nil {
		return ErrFfmpegNotFound
	}
	if cfg.RembgURL != "" {
		if err := validateURL(cfg.RembgURL); err != nil {
			return err
		}
		return nil
	}
	if _, err := lookPath(cfg.RembgCommand); err != nil {
		return ErrRembgNotFound
	}
	return nil
}

// Optional 返回缺失的可选工具。ffprobe 只用于预估帧数，缺失时流水线照常运行。
func Optional() []error {
	var missing []error
	if _, err := lookPath("ffprobe"); err != nil {
		missing = append(missing, ErrFfprobeNotFound)
	}
	return missing
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrBadRembgURL
	}
	return nil
}

// RunCheck 打印工具可用性，仅供参考，不会中断
func RunCheck(cfg config.Config, log Logger) {
	log.Info("=== System Check ===")
	checkTool(log, "ffmpeg", "-version")
	checkTool(log, "ffprobe", "-version")
	if cfg.RembgURL != "" {
		if err := validateURL(cfg.RembgURL); err != nil {
			log.Error("rembg service: %v (%s)", err, cfg.RembgURL)
		} else {
			log.Success("rembg service: %s", cfg.RembgURL)
		}
		return
	}
	checkTool(log, cfg.RembgCommand, "--version")
	log.Info("Background removal model: %s", cfg.RemovalModel())
}

func checkTool(log Logger, name string, versionFlag string) {
	if _, err := lookPath(name); err != nil {
		log.Error("%s not found", name)
		return
	}
	out, err := exec.Command(name, versionFlag).Output()
	if err != nil {
		log.Warn("%s found but %s failed: %v", name, versionFlag, err)
		return
	}
	first := strings.TrimSpace(string(out))
	if idx := strings.Index(first, "\n"); idx > 0 {
		first = first[:idx]
	}
	log.Success("%s: %s", name, first)
}
