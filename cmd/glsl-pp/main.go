package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	glsl_pp "github.com/fwessels/glsl-pp"
	"github.com/fwessels/glsl-pp/internal/config"
)

const stdinName = "<stdin>"

func newApp() *cli.App {
	return &cli.App{
		Name:      "glsl-pp",
		Usage:     "Resolve the preprocessor directives of GLSL shaders",
		ArgsUsage: "[FILE]... (reads standard input when no file is given)",
		// -D values are macro bodies and may contain commas.
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load options from a YAML config file",
			},
			&cli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Predefine macro NAME, or NAME=VALUE (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "extension",
				Aliases: []string{"e"},
				Usage:   "Declare a supported extension (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Search DIR for #include'd files (repeatable)",
			},
			&cli.IntFlag{
				Name:  "default-version",
				Usage: "Value of __VERSION__ for shaders without #version",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write each result to DIR instead of standard output",
			},
			&cli.BoolFlag{
				Name:  "preserve-lines",
				Usage: "Keep stripped lines as empty lines so line numbers match the input",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Number of files processed in parallel (defaults to the number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "One of debug, info, warn, error",
			},
		},
		Action: run,
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		// Exit errors have already been reported by the cli package.
		if _, ok := err.(cli.ExitCoder); !ok {
			fmt.Fprintf(app.ErrWriter, "glsl-pp: %v\n", err)
			cli.OsExiter(1)
		}
	}
}

func run(c *cli.Context) error {
	level, err := validateLogLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(err, 2)
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 2)
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		files = []string{stdinName}
	}

	var (
		outDir  = c.String("output")
		outputs = make([]string, len(files))
		failed  = make([]bool, len(files))
	)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	eg, ctx := errgroup.WithContext(c.Context)
	eg.SetLimit(cfg.Jobs)
	for i, file := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := readSource(c.App.Reader, file)
			if err != nil {
				return err
			}
			opts := glsl_pp.Options{
				Defines:        cfg.Defines,
				Extensions:     cfg.Extensions,
				DefaultVersion: cfg.DefaultVersion,
				PreserveLines:  cfg.PreserveLines,
				Include:        newIncluder(file, cfg.IncludeDirs).include,
				Logger:         logger.With("file", shortPath(file)),
			}
			res := glsl_pp.Preprocess(src, opts)
			logDiagnostics(ctx, logger, file, res.Diagnostics)
			failed[i] = res.Err() != nil

			if outDir == "" || file == stdinName {
				outputs[i] = res.Output
				return nil
			}
			dst := filepath.Join(outDir, filepath.Base(file))
			if err := os.WriteFile(dst, []byte(res.Output), 0o644); err != nil {
				return fmt.Errorf("failed to write %q: %w", dst, err)
			}
			logger.Debug("wrote output", "file", shortPath(file), "output", dst)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return cli.Exit(err, 1)
	}

	for _, out := range outputs {
		if _, err := io.WriteString(c.App.Writer, out); err != nil {
			return err
		}
	}

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d file(s) failed to preprocess", n, len(files)), 1)
	}
	return nil
}

// loadConfig reads the config file, if any, and applies the command line on
// top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	var cfg config.Config
	if file := c.String("config"); file != "" {
		var err error
		if cfg, err = config.LoadConfig(file); err != nil {
			return cfg, err
		}
	}

	defines := make(map[string]string, len(cfg.Defines))
	for name, value := range cfg.Defines {
		defines[name] = value
	}
	for _, d := range c.StringSlice("define") {
		name, value := glsl_pp.ParseDefine(d)
		defines[name] = value
	}
	cfg.Defines = defines
	cfg.Extensions = append(cfg.Extensions, c.StringSlice("extension")...)
	cfg.IncludeDirs = append(cfg.IncludeDirs, c.StringSlice("include-dir")...)
	if c.IsSet("default-version") {
		cfg.DefaultVersion = c.Int("default-version")
	}
	if c.IsSet("preserve-lines") {
		cfg.PreserveLines = c.Bool("preserve-lines")
	}
	if c.IsSet("jobs") {
		cfg.Jobs = c.Int("jobs")
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = runtime.NumCPU()
	}
	return cfg, cfg.Validate()
}

func validateLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	return level, nil
}

func readSource(stdin io.Reader, file string) (string, error) {
	if file == stdinName {
		bs, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(bs), nil
	}
	bs, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file %q: %w", file, err)
	}
	return string(bs), nil
}

func logDiagnostics(ctx context.Context, logger *slog.Logger, file string, diags []glsl_pp.Diagnostic) {
	for _, d := range diags {
		level := slog.LevelError
		if d.Severity == glsl_pp.Warning {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, d.Message, "file", shortPath(file), "line", d.Line, "kind", d.Kind.String())
	}
}

func shortPath(p string) string {
	if p == "" || p == stdinName {
		return p
	}
	return filepath.Base(p)
}

// includer resolves #include names for one top-level file: relative to its
// directory first, then each include directory in order.
type includer struct {
	file string
	dirs []string
}

func newIncluder(file string, dirs []string) *includer {
	return &includer{file: file, dirs: dirs}
}

func (in *includer) include(name string) (string, error) {
	resolved, err := in.resolve(name)
	if err != nil {
		return "", err
	}
	bs, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func (in *includer) resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return filepath.Clean(name), nil
		}
		return "", os.ErrNotExist
	}

	if in.file != "" && in.file != stdinName {
		cand := filepath.Join(filepath.Dir(in.file), name)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}

	for _, dir := range in.dirs {
		cand := filepath.Join(dir, name)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	return "", fmt.Errorf("cannot resolve include %q (searched %s)", name, strings.Join(in.searchPath(), ", "))
}

func (in *includer) searchPath() []string {
	var dirs []string
	if in.file != "" && in.file != stdinName {
		dirs = append(dirs, filepath.Dir(in.file))
	}
	return append(dirs, in.dirs...)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
