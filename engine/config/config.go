package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/prisma/engine/core"
)

type ApplicationConfig struct {
	Name        string `toml:"name"`
	StartPosX   uint32 `toml:"start_pos_x"`
	StartPosY   uint32 `toml:"start_pos_y"`
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`
}

type RendererConfig struct {
	// Backend selects the GPU device implementation: "software" or "vulkan".
	Backend        string     `toml:"backend"`
	FramesInFlight uint32     `toml:"frames_in_flight"`
	MaxObjects     uint32     `toml:"max_objects"`
	Wireframe      bool       `toml:"wireframe"`
	ClearColor     [4]float32 `toml:"clear_color"`
}

type SceneConfig struct {
	// ShapeColumns is the number of column pairs (cylinder + sphere) placed
	// along each side of the scene.
	ShapeColumns uint32  `toml:"shape_columns"`
	SpinSpeedMin float32 `toml:"spin_speed_min"`
	SpinSpeedMax float32 `toml:"spin_speed_max"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Scene       SceneConfig       `toml:"scene"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "Prisma Shapes",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: RendererConfig{
			Backend:        "software",
			FramesInFlight: 3,
			MaxObjects:     64,
			Wireframe:      false,
			ClearColor:     [4]float32{0.0, 0.0, 0.2, 1.0},
		},
		Scene: SceneConfig{
			ShapeColumns: 5,
			SpinSpeedMin: 0.2,
			SpinSpeedMax: 0.8,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogDebug("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		core.LogError("failed to parse config %s: %s", path, err.Error())
		return nil, err
	}
	if cfg.Renderer.FramesInFlight < 2 {
		core.LogWarn("frames_in_flight %d is below the minimum of 2, clamping", cfg.Renderer.FramesInFlight)
		cfg.Renderer.FramesInFlight = 2
	}
	return cfg, nil
}
