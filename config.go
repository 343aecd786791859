package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	TargetARM64 = "arm64"
	TargetWasm  = "wasm"

	OSLinux  = "linux"
	OSDarwin = "darwin"
)

// DefaultConfigFile is looked up next to the input when no --config is given.
const DefaultConfigFile = "kwc.yaml"

// Options controls one compilation.
type Options struct {
	Target   string `yaml:"target"`   // "arm64" or "wasm"
	OS       string `yaml:"os"`       // object format flavor for arm64: "linux" or "darwin"
	Optimize bool   `yaml:"optimize"` // run the AST optimizer before generating
	Strict   bool   `yaml:"strict"`   // treat backend limitations as errors
	Output   string `yaml:"output"`   // output path; empty means derived from the input
}

func DefaultOptions() Options {
	return Options{
		Target:   TargetARM64,
		OS:       OSLinux,
		Optimize: true,
	}
}

// LoadOptions reads a YAML config file over base. Keys missing from the file
// keep their value from base.
func LoadOptions(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrapf(err, "reading config %s", path)
	}
	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return base, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := opts.Validate(); err != nil {
		return base, errors.Wrapf(err, "config %s", path)
	}
	return opts, nil
}

// Validate rejects unknown targets and object format flavors.
func (o Options) Validate() error {
	switch o.Target {
	case TargetARM64, TargetWasm:
	default:
		return errors.Errorf("unknown target %q (want %q or %q)", o.Target, TargetARM64, TargetWasm)
	}
	switch o.OS {
	case OSLinux, OSDarwin:
	default:
		return errors.Errorf("unknown os %q (want %q or %q)", o.OS, OSLinux, OSDarwin)
	}
	return nil
}

// OutputExt is the conventional file extension of the target's output.
func (o Options) OutputExt() string {
	if o.Target == TargetWasm {
		return ".wat"
	}
	return ".s"
}
