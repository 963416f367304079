package video2frames

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoProbe 只关心视频流
type VideoProbe struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`      // 有些视频是字符串
		AvgFrameRate string `json:"avg_frame_rate"` // fallback
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// SourceInfo 源视频的基本信息
type SourceInfo struct {
	Width, Height int
	FrameRate     float64
	Duration      float64
	TotalFrames   int
}

var probeFunc = func(path string, timeout time.Duration) (string, error) {
	return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
}

// Probe 调用 ffprobe 读取视频信息
func Probe(path string, timeout time.Duration) (SourceInfo, error) {
	probeStr, err := probeFunc(path, timeout)
	if err != nil {
		return SourceInfo{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbe([]byte(probeStr))
}

func parseProbe(data []byte) (SourceInfo, error) {
	var probe VideoProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return SourceInfo{}, fmt.Errorf("json unmarshal error: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info := SourceInfo{Width: stream.Width, Height: stream.Height}
		info.FrameRate = parseRate(stream.AvgFrameRate)
		info.Duration = parseFloat(stream.Duration)
		if info.Duration == 0 {
			info.Duration = parseFloat(probe.Format.Duration)
		}

		// nb_frames 存在则直接使用，否则用帧率 * 时长估算
		if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
			info.TotalFrames = n
		} else if info.FrameRate > 0 && info.Duration > 0 {
			info.TotalFrames = int(info.FrameRate*info.Duration + 0.5)
		}
		return info, nil
	}

	return SourceInfo{}, fmt.Errorf("no video stream found")
}

// "30000/1001" -> 29.97
func parseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// ExpectedFrames 按抽帧帧率估算输出帧数
func (s SourceInfo) ExpectedFrames(fps int) int {
	if s.Duration <= 0 || fps <= 0 {
		return 0
	}
	return int(s.Duration*float64(fps) + 0.5)
}
