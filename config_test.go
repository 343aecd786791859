package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	be.Err(t, os.WriteFile(path, []byte(contents), 0o644), nil)
	return path
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	be.Equal(t, opts, Options{Target: TargetARM64, OS: OSLinux, Optimize: true})
	be.Err(t, opts.Validate(), nil)
	be.Equal(t, opts.OutputExt(), ".s")

	opts.Target = TargetWasm
	be.Equal(t, opts.OutputExt(), ".wat")
}

func TestLoadOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want Options
	}{
		{
			name: "empty file keeps base",
			yaml: "",
			want: DefaultOptions(),
		},
		{
			name: "target and strict",
			yaml: "target: wasm\nstrict: true\n",
			want: Options{Target: TargetWasm, OS: OSLinux, Optimize: true, Strict: true},
		},
		{
			name: "optimizer off",
			yaml: "optimize: false\nos: darwin\noutput: out/prog.s\n",
			want: Options{Target: TargetARM64, OS: OSDarwin, Output: "out/prog.s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), DefaultConfigFile, tt.yaml)
			opts, err := LoadOptions(path, DefaultOptions())
			be.Err(t, err, nil)
			be.Equal(t, opts, tt.want)
		})
	}
}

func TestLoadOptionsErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"malformed", "target: [wasm\n", "parsing config"},
		{"wrong type", "optimize: sometimes\n", "parsing config"},
		{"unknown target", "target: x86\n", `unknown target "x86"`},
		{"unknown os", "os: plan9\n", `unknown os "plan9"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), DefaultConfigFile, tt.yaml)
			opts, err := LoadOptions(path, DefaultOptions())
			be.True(t, err != nil)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			// A rejected file leaves the base untouched.
			be.Equal(t, opts, DefaultOptions())
		})
	}

	_, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"), DefaultOptions())
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "reading config"))
}
