package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Compile runs the backend pipeline on a loaded tree: the optimizer (unless
// disabled), then the generator for opts.Target. The returned text is usable
// even when the error lists backend limitations; see IsLimitationError.
func Compile(arena *Arena, root NodeID, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if opts.Optimize {
		var stats OptimizeStats
		root, stats = OptimizeWithStats(arena, root)
		if glog.V(1) {
			glog.V(1).Infof("optimized %d nodes: %+v", arena.Len(), stats)
		}
	}
	switch opts.Target {
	case TargetWasm:
		return GenerateWasm(arena, root, opts)
	default:
		return GenerateARM64(arena, root, opts)
	}
}

// CompileSource parses an AST document and compiles it.
func CompileSource(src string, opts Options) (string, error) {
	arena, root, err := ParseAST(src)
	if err != nil {
		return "", err
	}
	return Compile(arena, root, opts)
}

// IsLimitationError reports whether err consists only of backend limitation
// diagnostics, meaning the generated text is complete apart from placeholders.
func IsLimitationError(err error) bool {
	if err == nil {
		return false
	}
	type multi interface{ WrappedErrors() []error }
	errs := []error{err}
	if m, ok := err.(multi); ok {
		errs = m.WrappedErrors()
	}
	for _, e := range errs {
		if _, ok := errors.Cause(e).(*LimitationError); !ok {
			return false
		}
	}
	return true
}

// outputPath derives the output file from the input when none is given.
func outputPath(input string, opts Options) string {
	if opts.Output != "" {
		return opts.Output
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + opts.OutputExt()
}

// resolveOptions starts from the defaults, applies a config file, and returns
// the result for flags to override. An explicit config path must exist; the
// implicit kwc.yaml next to the input is optional.
func resolveOptions(configPath, input string) (Options, error) {
	opts := DefaultOptions()
	if configPath == "" {
		candidate := filepath.Join(filepath.Dir(input), DefaultConfigFile)
		if _, err := os.Stat(candidate); err != nil {
			return opts, nil
		}
		configPath = candidate
	}
	glog.V(3).Infof("loading options from %s", configPath)
	return LoadOptions(configPath, opts)
}
