package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/1broseidon/xsafe"
	"github.com/1broseidon/xsafe/internal/config"
	"github.com/1broseidon/xsafe/internal/logging"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "info":
		os.Exit(runInfo(os.Args[2:], os.Stdout))
	case "demo":
		os.Exit(runDemo(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:], os.Stdout, os.Stderr))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: xsafe <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  info                Describe the display, its screens and monitors")
	fmt.Fprintln(w, "  demo                Open a window and draw into it until a key is pressed")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'xsafe <command> --help' for command-specific options.")
}

// connectFlags are shared by the commands that talk to a server.
type connectFlags struct {
	path    string
	display string
	screen  int
}

func (c *connectFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.path, "path", "", "Config file path (default: ~/.config/xsafe/config.yaml)")
	fs.StringVar(&c.display, "display", "", "X display to connect to (overrides config and $DISPLAY)")
	fs.IntVar(&c.screen, "screen", -1, "Screen number (default: from config, then the display's default)")
}

func (c *connectFlags) load() (*config.Config, error) {
	res, err := loadResult(c.path)
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	if c.display != "" {
		cfg.Display = c.display
	}
	if c.screen >= 0 {
		cfg.Screen = c.screen
	}
	return cfg, nil
}

func loadResult(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

// session bundles an open display with the logger built for it.
type session struct {
	display *xsafe.Display
	logger  *slog.Logger
	logs    io.Closer
}

func openSession(cfg *config.Config) (*session, error) {
	logger, logs, err := logging.New(cfg.LoggingOptions(), os.Stderr)
	if err != nil {
		return nil, err
	}
	d, err := xsafe.OpenConfig(xsafe.Config{
		Display:            cfg.Display,
		XAuthority:         cfg.XAuthority,
		DisableAutoRelease: !cfg.AutoRelease,
		Logger:             logger,
	})
	if err != nil {
		logs.Close()
		return nil, err
	}
	return &session{
		display: d,
		logger:  logger.With("session", d.Session().String()),
		logs:    logs,
	}, nil
}

// screen resolves the configured screen number, falling back to the
// display's default.
func (s *session) screen(cfg *config.Config) (*xsafe.Screen, error) {
	if cfg.Screen >= 0 {
		return s.display.Screen(cfg.Screen)
	}
	return s.display.DefaultScreenOf()
}

func (s *session) Close() error {
	err := s.display.Close()
	if errors.Is(err, xsafe.ErrInvalidConnection) {
		err = nil
	}
	if cerr := s.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  xsafe config validate [--path PATH]")
		fmt.Fprintln(stderr, "  xsafe config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(stderr, "  xsafe config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/xsafe/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		res, err := loadResult(*path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		for _, f := range res.Files {
			fmt.Fprintf(stdout, "# loaded: %s\n", f)
		}
		fmt.Fprintln(stdout, "config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/xsafe/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadResult(*path)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprint(stdout, string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/xsafe/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadResult(*path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}

		fmt.Fprintf(stdout, "path: %s\n", queryPath)
		fmt.Fprintf(stdout, "source: %s\n", formatSource(src))
		fmt.Fprintf(stdout, "value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(stderr, "Unknown config command: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}
