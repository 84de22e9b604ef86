// Package config loads the YAML configuration of the denseseg command.
package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"gopkg.in/yaml.v3"

	"github.com/sugarme/denseseg/encoder"
	"github.com/sugarme/denseseg/models"
)

// Weight load modes.
const (
	// LoadPretrained loads backbone weights and leaves the rest initialised.
	LoadPretrained = "pretrained"
	// LoadCheckpoint expects every variable of the model in the file.
	LoadCheckpoint = "checkpoint"
	// LoadNone keeps random initialisation.
	LoadNone = "none"
)

// Config holds model and inference settings.
type Config struct {
	Model     string   `yaml:"model"`
	Classes   int64    `yaml:"classes"`
	Names     []string `yaml:"names"`
	Device    string   `yaml:"device"`
	Weights   string   `yaml:"weights"`
	Load      string   `yaml:"load"`
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	ChunkSize int64    `yaml:"chunk_size"`
	OutputDir string   `yaml:"output_dir"`
}

// Default returns the default configuration: PixelNet, 21 classes (PASCAL VOC)
// on CPU with ImageNet VGG16 weights.
func Default() *Config {
	return &Config{
		Model:     "pixelnet",
		Classes:   21,
		Device:    "cpu",
		Weights:   "./model/vgg16.ot",
		Load:      LoadPretrained,
		Width:     224,
		Height:    224,
		ChunkSize: 10000,
		OutputDir: "./output",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(file string) (*Config, error) {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", filepath.Base(file))
	}

	return cfg, cfg.Validate()
}

// Validate checks field values.
func (c *Config) Validate() error {
	backbone, err := models.Backbone(c.Model)
	if err != nil {
		return err
	}
	if c.Classes <= 0 {
		return errors.Errorf("classes must be positive, got %d", c.Classes)
	}
	if len(c.Names) > 0 && int64(len(c.Names)) != c.Classes {
		return errors.Errorf("%d class names given for %d classes", len(c.Names), c.Classes)
	}
	switch c.Device {
	case "cpu", "cuda":
	default:
		return errors.Errorf("unknown device %q, expected cpu or cuda", c.Device)
	}
	switch c.Load {
	case LoadPretrained, LoadCheckpoint:
		if c.Weights == "" {
			return errors.Errorf("load mode %q needs a weights file", c.Load)
		}
	case LoadNone:
	default:
		return errors.Errorf("unknown load mode %q", c.Load)
	}
	if side := encoder.MinInputSize(backbone); c.Width < side || c.Height < side {
		return errors.Errorf("input size %dx%d is below %dx%d for %s", c.Width, c.Height, side, side, backbone)
	}
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}

	return nil
}

// GetDevice returns the gotch device, falling back to CPU when CUDA is not available.
func (c *Config) GetDevice() gotch.Device {
	if c.Device == "cuda" {
		return gotch.NewCuda().CudaIfAvailable()
	}
	return gotch.CPU
}

// ClassName returns the name of class i, or its number when no names are set.
func (c *Config) ClassName(i int) string {
	if i < len(c.Names) {
		return c.Names[i]
	}
	return fmt.Sprintf("class_%d", i)
}
