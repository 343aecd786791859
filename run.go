package main

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Generated programs are run with external tools: the system C compiler for
// AArch64 assembly (printf comes from its libc), and wat2wasm plus node for
// WebAssembly (node supplies the env imports through wasmHost).

// wasmHost instantiates a module with the two imports the generator uses and
// calls its main export.
const wasmHost = `const fs = require("fs");
let memory;
const decoder = new TextDecoder();
const env = {
  print_i64: (v) => { process.stdout.write(v.toString() + "\n"); },
  print_str: (off, len) => {
    process.stdout.write(decoder.decode(new Uint8Array(memory.buffer, off, len)) + "\n");
  },
};
const bytes = fs.readFileSync(process.argv[2]);
WebAssembly.instantiate(bytes, { env }).then(({ instance }) => {
  memory = instance.exports.memory;
  instance.exports.main();
});
`

// ToolchainAvailable reports why generated code for target cannot be run
// here, or nil if it can.
func ToolchainAvailable(target string) error {
	var tools []string
	switch target {
	case TargetARM64:
		if runtime.GOARCH != "arm64" {
			return errors.Errorf("running %s code needs an arm64 host, have %s", target, runtime.GOARCH)
		}
		tools = []string{"cc"}
	case TargetWasm:
		tools = []string{"wat2wasm", "node"}
	default:
		return errors.Errorf("unknown target %q", target)
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return errors.Wrapf(err, "running %s code", target)
		}
	}
	return nil
}

// Execute assembles or converts text for target in a scratch directory and
// runs the result, copying the program's output to stdout.
func Execute(ctx context.Context, text, target string, stdout io.Writer) error {
	if err := ToolchainAvailable(target); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "kwc-run-")
	if err != nil {
		return errors.Wrap(err, "creating scratch directory")
	}
	defer os.RemoveAll(dir)

	if target == TargetWasm {
		wat := filepath.Join(dir, "program.wat")
		wasm := filepath.Join(dir, "program.wasm")
		host := filepath.Join(dir, "host.js")
		if err := os.WriteFile(wat, []byte(text), 0o644); err != nil {
			return errors.Wrap(err, "writing module")
		}
		if err := os.WriteFile(host, []byte(wasmHost), 0o644); err != nil {
			return errors.Wrap(err, "writing host")
		}
		if err := tool(ctx, nil, "wat2wasm", wat, "-o", wasm); err != nil {
			return err
		}
		return tool(ctx, stdout, "node", host, wasm)
	}

	asm := filepath.Join(dir, "program.s")
	exe := filepath.Join(dir, "program")
	if err := os.WriteFile(asm, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "writing assembly")
	}
	if err := tool(ctx, nil, "cc", "-o", exe, asm); err != nil {
		return err
	}
	return tool(ctx, stdout, exe)
}

// tool runs one external command. Its diagnostics are part of the returned
// error; its standard output goes to stdout if given.
func tool(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	glog.V(3).Infof("exec: %s %v", name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	if stdout == nil {
		out, err := cmd.CombinedOutput()
		return errors.Wrapf(err, "%s failed: %s", filepath.Base(name), out)
	}
	var stderr limitedBuffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed: %s", filepath.Base(name), stderr.buf)
	}
	return nil
}

// limitedBuffer keeps the first 4 KiB written to it.
type limitedBuffer struct {
	buf []byte
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := 4096 - len(b.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
	}
	return len(p), nil
}
