// Package models maps model names to constructors.
package models

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/encoder"
	"github.com/sugarme/denseseg/pixelnet"
	"github.com/sugarme/denseseg/segnet"
	"github.com/sugarme/denseseg/unet"
)

// Constructor builds a model with nclasses outputs under path p.
type Constructor func(p *nn.Path, nclasses int64) ts.ModuleT

type entry struct {
	ctor     Constructor
	backbone string
}

var (
	mu       sync.RWMutex
	registry = map[string]entry{
		"pixelnet": {
			ctor: func(p *nn.Path, nclasses int64) ts.ModuleT {
				return pixelnet.DefaultPixelNet(p, nclasses)
			},
			backbone: encoder.VGG16,
		},
		"unet": {
			ctor: func(p *nn.Path, nclasses int64) ts.ModuleT {
				return unet.DefaultUNet(p, nclasses)
			},
			backbone: encoder.VGG16,
		},
		"segnet": {
			ctor: func(p *nn.Path, nclasses int64) ts.ModuleT {
				return segnet.NewSegNet(p, nclasses)
			},
			backbone: encoder.VGG16,
		},
		"pixelnet-resnet34": {
			ctor: func(p *nn.Path, nclasses int64) ts.ModuleT {
				return pixelnet.NewPixelNet(p, encoder.NewResNet34Encoder(p), nclasses)
			},
			backbone: encoder.ResNet34,
		},
		"unet-resnet34": {
			ctor: func(p *nn.Path, nclasses int64) ts.ModuleT {
				return unet.NewUNet(p, encoder.NewResNet34Encoder(p), nclasses)
			},
			backbone: encoder.ResNet34,
		},
	}
)

// New creates the model registered under name.
func New(name string, p *nn.Path, nclasses int64) (ts.ModuleT, error) {
	if nclasses <= 0 {
		return nil, errors.Errorf("invalid number of classes: %d", nclasses)
	}

	mu.RLock()
	e, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown model %q, expected one of %v", name, Names())
	}

	return e.ctor(p, nclasses), nil
}

// Register adds a model constructor under name. backbone names the pretrained
// weights the model expects, e.g. encoder.VGG16.
func Register(name, backbone string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return errors.New("model name and constructor are required")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		return errors.Errorf("model %q already registered", name)
	}
	registry[name] = entry{ctor: ctor, backbone: backbone}

	return nil
}

// Names returns the registered model names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// Backbone returns the backbone name of a registered model.
func Backbone(name string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := registry[name]
	if !ok {
		return "", errors.Errorf("unknown model %q", name)
	}

	return e.backbone, nil
}
