package main

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/nalgeon/be"
	"github.com/pkg/errors"
)

func TestCompileBothTargets(t *testing.T) {
	t.Parallel()
	src := `(call (ident "print") (binary "*" (binary "+" 2 3) 4))`
	tests := []struct {
		target   string
		optimize bool
		want     []string
	}{
		{TargetARM64, true, []string{"mov x0, #20", "bl kw_print_int"}},
		{TargetARM64, false, []string{"add x0, x1, x0", "mov x0, #4", "mul x0, x1, x0", "bl kw_print_int"}},
		{TargetWasm, true, []string{"i64.const 20", "call $print_i64"}},
		{TargetWasm, false, []string{"i64.add", "i64.const 4", "i64.mul", "call $print_i64"}},
	}

	for _, tt := range tests {
		name := tt.target
		if !tt.optimize {
			name += "/no-opt"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			opts := DefaultOptions()
			opts.Target = tt.target
			opts.Optimize = tt.optimize
			text, err := CompileSource(src, opts)
			be.Err(t, err, nil)
			assertLinesInOrder(t, text, tt.want)
		})
	}
}

func TestCompileRejectsInvalidOptions(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.Target = "riscv"
	_, err := CompileSource(`1`, opts)
	be.True(t, err != nil)
	be.True(t, !IsLimitationError(err))
}

func TestEveryNodeKindIsLowered(t *testing.T) {
	t.Parallel()
	// One document that uses every kind of node in a supported position.
	src := `
		(program
		  (class "P" (fields (field "x" integer)))
		  (func "id" (params (param "v" integer)) integer (block (return (ident "v"))))
		  (var "xs" array (array 1 2 3))
		  (var "d" decimal (decimal "1.5"))
		  (for "i" 0 2
		    (block
		      (if (binary "==" (ident "i") 1) (continue))
		      (assign (index (ident "xs") (ident "i")) (unary "-" (ident "i")))))
		  (while (boolean false) (break))
		  (call (ident "print") (string "s") (pipe 4 (ident "id")) (index (ident "xs") 2) (ident "d")))
	`
	arena, _ := parseTree(t, src)
	seen := map[NodeKind]bool{}
	for id := NodeID(0); int(id) < arena.Len(); id++ {
		seen[arena.At(id).Kind] = true
	}
	for _, kind := range allNodeKinds {
		be.True(t, seen[kind])
	}

	for _, target := range allTargets {
		opts := DefaultOptions()
		opts.Target = target
		_, err := CompileSource(src, opts)
		for _, msg := range diagnosticMessages(err) {
			// Decimal printing is the only expected gap.
			be.Equal(t, msg, "wasm: unsupported NodeIdent: decimal printed as its integer part")
		}
	}
}

func TestNestedLoopLabels(t *testing.T) {
	t.Parallel()
	// The inner while breaks and continues to its own labels; the outer
	// continue after it must still reach the for loop's step.
	src := `
		(program
		  (func "f" (params) void (block (while (boolean false) (break))))
		  (for "i" 1 3
		    (block
		      (while (boolean true)
		        (block
		          (if (binary ">" (ident "i") 5) (continue))
		          (break)))
		      (if (binary "==" (ident "i") 2) (continue))
		      (call (ident "print") (ident "i")))))
	`
	tests := []struct {
		target string
		def    *regexp.Regexp
		lines  []string
	}{
		{
			target: TargetARM64,
			def:    regexp.MustCompile(`^(\.Lkw\d+):$`),
			lines: []string{
				".Lkw4:", ".Lkw7:", "b .Lkw7", "b .Lkw8", "b .Lkw7", ".Lkw8:",
				"b .Lkw5", ".Lkw5:", "b .Lkw4", ".Lkw6:",
			},
		},
		{
			target: TargetWasm,
			def:    regexp.MustCompile(`^(?:block|loop) (\$L\d+)$`),
			lines: []string{
				"block $L4", "loop $L5", "block $L6", "block $L7", "loop $L8", "br $L8", "br $L7", "br $L8",
				"br $L6", "br $L5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			opts := DefaultOptions()
			opts.Target = tt.target
			text, err := CompileSource(src, opts)
			be.Err(t, err, nil)

			seen := map[string]bool{}
			for _, line := range trimmedLines(text) {
				m := tt.def.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				if seen[m[1]] {
					t.Errorf("label %s defined twice", m[1])
				}
				seen[m[1]] = true
			}
			// arm64 also defines both return labels and two labels per if.
			if tt.target == TargetARM64 {
				be.Equal(t, len(seen), 13)
			} else {
				be.Equal(t, len(seen), 7)
			}
			assertLinesInOrder(t, text, tt.lines)
		})
	}
}

func TestIsLimitationError(t *testing.T) {
	t.Parallel()
	limitation := &LimitationError{Target: TargetWasm, Kind: NodeBreak, Message: "break outside of a loop"}
	other := errors.New("disk full")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", other, false},
		{"limitation", limitation, true},
		{"wrapped limitation", errors.Wrap(limitation, "compiling"), true},
		{"list of limitations", multierror.Append(nil, limitation, limitation), true},
		{"mixed list", multierror.Append(nil, limitation, other), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			be.Equal(t, IsLimitationError(tt.err), tt.want)
		})
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	wasm := DefaultOptions()
	wasm.Target = TargetWasm
	explicit := DefaultOptions()
	explicit.Output = "out/a.s"

	be.Equal(t, outputPath("prog.kwast", DefaultOptions()), "prog.s")
	be.Equal(t, outputPath("dir/prog.kwast", wasm), "dir/prog.wat")
	be.Equal(t, outputPath("noext", DefaultOptions()), "noext.s")
	be.Equal(t, outputPath("a.b/prog", wasm), "a.b/prog.wat")
	be.Equal(t, outputPath("prog.kwast", explicit), "out/a.s")
}

func TestResolveOptions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := filepath.Join(dir, "prog.kwast")

	opts, err := resolveOptions("", input)
	be.Err(t, err, nil)
	be.Equal(t, opts, DefaultOptions())

	writeFile(t, dir, DefaultConfigFile, "target: wasm\n")
	opts, err = resolveOptions("", input)
	be.Err(t, err, nil)
	be.Equal(t, opts.Target, TargetWasm)

	other := writeFile(t, dir, "other.yaml", "os: darwin\n")
	opts, err = resolveOptions(other, input)
	be.Err(t, err, nil)
	be.Equal(t, opts.Target, TargetARM64)
	be.Equal(t, opts.OS, OSDarwin)

	_, err = resolveOptions(filepath.Join(dir, "missing.yaml"), input)
	be.True(t, err != nil)
}

func TestExecuteUnknownTarget(t *testing.T) {
	t.Parallel()
	err := Execute(context.Background(), "", "sparc", nil)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), `unknown target "sparc"`))
}

func TestLimitedBuffer(t *testing.T) {
	t.Parallel()
	var b limitedBuffer
	n, err := b.Write([]byte(strings.Repeat("a", 4000)))
	be.Err(t, err, nil)
	be.Equal(t, n, 4000)
	n, err = b.Write([]byte(strings.Repeat("b", 200)))
	be.Err(t, err, nil)
	be.Equal(t, n, 200)
	_, _ = b.Write([]byte("c"))

	be.Equal(t, len(b.buf), 4096)
	be.Equal(t, string(b.buf[4000:]), strings.Repeat("b", 96))
}
