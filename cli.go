package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InitLogging configures glog from the persistent flags. glog only reads its
// settings from the standard flag set, so the values are poked in there.
func InitLogging(logToStderr bool, verbose int) {
	if !flag.Parsed() {
		_ = flag.CommandLine.Parse(nil)
	}
	if logToStderr {
		_ = flag.Lookup("logtostderr").Value.Set("true")
	}
	if verbose > 0 {
		_ = flag.Lookup("v").Value.Set(strconv.Itoa(verbose))
	}
}

// compileFlags are the options shared by every command that generates code.
type compileFlags struct {
	config string
	target string
	os     string
	output string
	noOpt  bool
	strict bool
}

func (f *compileFlags) register(flags *pflag.FlagSet, withOutput bool) {
	flags.StringVar(&f.config, "config", "",
		"YAML options file (default: "+DefaultConfigFile+" next to the input, if present)")
	flags.StringVarP(&f.target, "target", "t", "", "Target: arm64 or wasm (default arm64)")
	flags.StringVar(&f.os, "os", "", "Object format flavor for arm64: linux or darwin (default linux)")
	flags.BoolVar(&f.noOpt, "no-opt", false, "Skip the AST optimizer")
	flags.BoolVar(&f.strict, "strict", false, "Fail when the backend had to omit a construct")
	if withOutput {
		flags.StringVarP(&f.output, "output", "o", "", "Output path (default: input with .s or .wat)")
	}
}

// options layers defaults, the config file, then any flags the user set.
func (f *compileFlags) options(flags *pflag.FlagSet, input string) (Options, error) {
	opts, err := resolveOptions(f.config, input)
	if err != nil {
		return opts, err
	}
	if flags.Changed("target") {
		opts.Target = f.target
	}
	if flags.Changed("os") {
		opts.OS = f.os
	}
	if flags.Changed("output") {
		opts.Output = f.output
	}
	if f.noOpt {
		opts.Optimize = false
	}
	if f.strict {
		opts.Strict = true
	}
	return opts, opts.Validate()
}

// compileFile loads and compiles one AST document, reporting limitations on
// stderr as warnings unless the options are strict.
func compileFile(path string, opts Options, stderr io.Writer) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	text, err := CompileSource(string(src), opts)
	return text, reportDiagnostics(path, err, opts, stderr)
}

func reportDiagnostics(path string, err error, opts Options, stderr io.Writer) error {
	if err == nil {
		return nil
	}
	if !IsLimitationError(err) {
		return errors.Wrap(err, path)
	}
	if opts.Strict {
		return errors.Wrapf(err, "%s: strict mode", path)
	}
	fmt.Fprintf(stderr, "warning: %s: %v\n", path, err)
	return nil
}

func newBuildCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "build [flags] <file.kwast>",
		Short: "Compile an AST document to assembly or WebAssembly text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			opts, err := f.options(cmd.Flags(), input)
			if err != nil {
				return err
			}
			text, err := compileFile(input, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := outputPath(input, opts)
			if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (%d bytes)\n", out, len(text))
			return nil
		},
	}
	f.register(cmd.Flags(), true)
	return cmd
}

func newRunCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "run [flags] <file.kwast>",
		Short: "Compile an AST document and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			opts, err := f.options(cmd.Flags(), input)
			if err != nil {
				return err
			}
			text, err := compileFile(input, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return Execute(cmd.Context(), text, opts.Target, cmd.OutOrStdout())
		},
	}
	f.register(cmd.Flags(), false)
	return cmd
}

func newEvalCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "eval [flags] <ast>",
		Short: "Compile inline AST text and print the generated code",
		Example: `  kwc eval '(call (ident "print") (binary "*" (binary "+" 2 3) 4))'
  kwc eval --target wasm '(call (ident "print") (string "hi"))'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd.Flags(), ".")
			if err != nil {
				return err
			}
			text, err := CompileSource(args[0], opts)
			if err := reportDiagnostics("<eval>", err, opts, cmd.ErrOrStderr()); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	f.register(cmd.Flags(), false)
	return cmd
}

func newCheckCmd(verbose *int) *cobra.Command {
	var noOpt bool
	cmd := &cobra.Command{
		Use:   "check [flags] <file.kwast>",
		Short: "Validate an AST document",
		Long: "Validate an AST document.\n" +
			"\n" +
			"With -v, the tree is printed after optimization.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "reading %s", path)
			}
			arena, root, err := ParseAST(string(src))
			if err != nil {
				return errors.Wrap(err, path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no errors found\n", path)
			if *verbose > 0 {
				if !noOpt {
					root = Optimize(arena, root)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "AST: %s\n", ToSExpr(arena, root))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOpt, "no-opt", false, "Print the tree as loaded")
	return cmd
}

// NewKwcCmd creates the root command.
func NewKwcCmd() *cobra.Command {
	var logToStderr bool
	var verbose int

	cmd := &cobra.Command{
		Use:           "kwc",
		Short:         "Optimizing compiler backend for AArch64 and WebAssembly",
		SilenceErrors: true,
		SilenceUsage:  true,
		Long: "kwc - compiler backend\n" +
			"\n" +
			"kwc reads a type-checked AST document, optimizes it, and emits\n" +
			"AArch64 assembly (.s) or WebAssembly text (.wat).\n" +
			"\n" +
			"    $ kwc build prime.kwast\n" +
			"    $ kwc build --target wasm -o prime.wat prime.kwast\n" +
			"    $ kwc run prime.kwast\n",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			InitLogging(logToStderr, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			glog.Flush()
		},
	}

	cmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr instead of to files")
	cmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0,
		"Enable verbose logging (e.g., v=3); anything >3 is very verbose")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newCheckCmd(&verbose))
	return cmd
}

func main() {
	cmd := NewKwcCmd()
	if err := cmd.Execute(); err != nil {
		glog.Flush()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
