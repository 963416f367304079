package config

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.InputVideo = "target.mp4"
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	g := NewWithT(t)
	g.Expect(validConfig().Validate()).To(Succeed())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"missing video", func(c *Config) { c.InputVideo = "" }, true},
		{"empty output", func(c *Config) { c.OutputDir = " " }, true},
		{"zero fps", func(c *Config) { c.ExtractFPS = 0 }, true},
		{"zero colors", func(c *Config) { c.Colors = 0 }, true},
		{"too many colors", func(c *Config) { c.Colors = 257 }, true},
		{"zero samples", func(c *Config) { c.PaletteSamples = 0 }, true},
		{"zero gif fps", func(c *Config) { c.GIFFPS = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero timeout", func(c *Config) { c.ToolTimeout = 0 }, true},
		{"bad color mode", func(c *Config) { c.ColorMode = "rainbow" }, true},
		{"no rembg at all", func(c *Config) { c.RembgCommand = ""; c.RembgURL = "" }, true},
		{"rembg service only", func(c *Config) { c.RembgCommand = ""; c.RembgURL = "http://localhost:7000" }, false},
		{"negative downscale degrades later", func(c *Config) { c.DownscaleFactor = -3 }, false},
		{"zero skip is clamped later", func(c *Config) { c.GIFSkip = 0 }, false},
		{"check only skips path checks", func(c *Config) { c.InputVideo = ""; c.CheckOnly = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
			} else {
				g.Expect(err).NotTo(HaveOccurred())
			}
		})
	}
}

func TestEffectiveSkip(t *testing.T) {
	g := NewWithT(t)
	cfg := validConfig()
	for in, want := range map[int]int{-2: 1, 0: 1, 1: 1, 3: 3} {
		cfg.GIFSkip = in
		g.Expect(cfg.EffectiveSkip()).To(Equal(want))
	}
}

func TestRemovalModel(t *testing.T) {
	g := NewWithT(t)
	cfg := validConfig()
	g.Expect(cfg.RemovalModel()).To(Equal(FastModel))
	cfg.HighQuality = true
	g.Expect(cfg.RemovalModel()).To(Equal(QualityModel))
}

func TestLayout(t *testing.T) {
	g := NewWithT(t)
	cfg := validConfig()
	cfg.OutputDir = "out/run/"
	l := cfg.Layout()
	g.Expect(l.Root).To(Equal(filepath.Join("out", "run")))
	g.Expect(l.RawDir).To(Equal(filepath.Join("out", "run", "01_raw_frames")))
	g.Expect(l.FinalDir).To(Equal(filepath.Join("out", "run", "04_final_frames")))
	g.Expect(l.SheetPath).To(Equal(filepath.Join("out", "run", "final_spritesheet.png")))
	g.Expect(l.GIFPath).To(Equal(filepath.Join("out", "run", "final_animation.gif")))
	g.Expect(l.StageDirs()).To(HaveLen(5))
}
