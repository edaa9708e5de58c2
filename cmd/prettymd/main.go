package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"pkt.systems/prettymd"
	"pkt.systems/prettymd/cmark"
	"pkt.systems/prettymd/internal/config"
	"pkt.systems/version"
)

func init() {
	version.SetDefaultModule("pkt.systems/prettymd")
}

// errUnformatted makes --check exit non-zero without printing an error.
var errUnformatted = errors.New("input is not formatted")

type mode int

const (
	modePrint mode = iota
	modeWrite
	modeList
	modeCheck
)

type options struct {
	mode       mode
	outPath    string
	configPath string
	emphasis   string
	softBreak  string
	hardBreak  string
	jobs       int
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		opt         options
		write       bool
		list        bool
		check       bool
		showVersion bool
	)
	flags := pflag.NewFlagSet("prettymd", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.BoolVarP(&write, "write", "w", false, "Rewrite files in place")
	flags.BoolVarP(&list, "list", "l", false, "List files whose formatting differs")
	flags.BoolVarP(&check, "check", "c", false, "Exit 1 if any file is not formatted")
	flags.StringVarP(&opt.outPath, "output", "o", "", "Output file instead of stdout")
	flags.StringVar(&opt.configPath, "config", "", "Config file (default ~/.config/prettymd/config.toml)")
	flags.StringVar(&opt.emphasis, "emphasis", "", "Emphasis delimiter: * or _")
	flags.StringVar(&opt.softBreak, "soft-break", "", "Soft line breaks: space or newline")
	flags.StringVar(&opt.hardBreak, "hard-break", "", "Hard line breaks: spaces or backslash")
	flags.IntVarP(&opt.jobs, "jobs", "j", 0, "Files formatted concurrently (0 uses GOMAXPROCS)")
	flags.BoolVarP(&opt.verbose, "verbose", "v", false, "Log each processed input")
	flags.BoolVar(&showVersion, "version", false, "Print version and exit")
	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintln(stderr, version.Module(), version.Current())
		fmt.Fprintf(stderr, "Usage: prettymd [flags] [inputs...]\n")
		fmt.Fprintln(stderr, "\nIf no input is provided, Markdown is read from stdin.")
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, version.Module(), version.Current())
		return 0
	}

	log := newLogger(stderr, opt.verbose)

	switch {
	case btoi(write)+btoi(list)+btoi(check) > 1:
		fmt.Fprintln(stderr, "--write, --list and --check are mutually exclusive")
		return 2
	case write:
		opt.mode = modeWrite
	case list:
		opt.mode = modeList
	case check:
		opt.mode = modeCheck
	}

	printerOpts, jobs, err := resolveOptions(opt)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	ctx := context.Background()
	inputs := flags.Args()
	if opt.mode != modePrint {
		if len(inputs) == 0 {
			fmt.Fprintln(stderr, "--write, --list and --check need file arguments")
			return 2
		}
		changed, err := processFiles(ctx, inputs, opt.mode, printerOpts, jobs, log)
		for _, path := range changed {
			if opt.mode != modeWrite {
				fmt.Fprintln(stdout, path)
			}
		}
		if err != nil {
			if !errors.Is(err, errUnformatted) {
				fmt.Fprintf(stderr, "format: %v\n", err)
			}
			return 1
		}
		return 0
	}

	if len(inputs) == 0 && isTerminal(stdin) {
		flags.Usage()
		return 2
	}
	writer, closeOut, err := resolveOutput(opt.outPath, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "open output: %v\n", err)
		return 1
	}
	if closeOut != nil {
		defer func() { _ = closeOut.Close() }()
	}
	log.WithField("inputs", len(inputs)).Debug("formatting")
	if len(inputs) == 1 && isHTTPURL(inputs[0]) {
		err = cmark.HTTPFormat(ctx, cmark.HTTPFormatRequest{
			URL:     strings.TrimSpace(inputs[0]),
			Writer:  writer,
			Options: printerOpts,
		})
	} else {
		err = formatInputs(ctx, inputs, stdin, writer, printerOpts)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// formatInputs formats the concatenation of inputs, or stdin when there are none.
func formatInputs(ctx context.Context, inputs []string, stdin io.Reader, w io.Writer, opts []prettymd.Option) error {
	reader, closer, err := openInputs(ctx, inputs, stdin)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	return cmark.Format(cmark.FormatRequest{
		Reader:  reader,
		Writer:  w,
		Options: opts,
	})
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// resolveOptions merges the config file with flag overrides; flags win.
func resolveOptions(opt options) ([]prettymd.Option, int, error) {
	cfg, err := config.Load(opt.configPath)
	if err != nil {
		return nil, 0, err
	}
	if opt.emphasis != "" {
		cfg.Emphasis = opt.emphasis
	}
	if opt.softBreak != "" {
		cfg.SoftBreak = opt.softBreak
	}
	if opt.hardBreak != "" {
		cfg.HardBreak = opt.hardBreak
	}
	if opt.jobs > 0 {
		cfg.Jobs = opt.jobs
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	printerOpts, err := cfg.Options()
	if err != nil {
		return nil, 0, err
	}
	return printerOpts, cfg.Jobs, nil
}

// processFiles formats every path concurrently and returns, in argument
// order, the paths whose content changed.
func processFiles(ctx context.Context, paths []string, m mode, opts []prettymd.Option, jobs int, log *logrus.Logger) ([]string, error) {
	changed := make([]bool, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			diff, err := formatFile(normalizePath(path), m == modeWrite, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.WithFields(logrus.Fields{"file": path, "changed": diff}).Debug("formatted")
			changed[i] = diff
			return nil
		})
	}
	err := g.Wait()
	var out []string
	for i, path := range paths {
		if changed[i] {
			out = append(out, path)
		}
	}
	if err == nil && m == modeCheck && len(out) > 0 {
		err = errUnformatted
	}
	return out, err
}

// formatFile reports whether path differs from its formatted form and, when
// write is set, replaces it.
func formatFile(path string, write bool, opts []prettymd.Option) (bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, err := cmark.Prettify(src, opts...)
	if err != nil {
		return false, err
	}
	formatted := []byte(out)
	if out != "" {
		formatted = append(formatted, '\n')
	}
	if bytes.Equal(src, formatted) {
		return false, nil
	}
	if write {
		info, err := os.Stat(path)
		if err != nil {
			return true, err
		}
		if err := os.WriteFile(path, formatted, info.Mode().Perm()); err != nil {
			return true, err
		}
	}
	return true, nil
}

type inputSource struct {
	open func() (io.Reader, io.Closer, error)
}

type multiInputReader struct {
	sources   []inputSource
	idx       int
	cur       io.Reader
	curCloser io.Closer
	closed    bool
}

func (m *multiInputReader) Read(p []byte) (int, error) {
	for {
		if m.closed {
			return 0, io.EOF
		}
		if m.cur == nil {
			if m.idx >= len(m.sources) {
				m.closed = true
				return 0, io.EOF
			}
			reader, closer, err := m.sources[m.idx].open()
			if err != nil {
				return 0, err
			}
			m.cur = reader
			m.curCloser = closer
			m.idx++
		}
		n, err := m.cur.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			if m.curCloser != nil {
				_ = m.curCloser.Close()
			}
			m.cur = nil
			m.curCloser = nil
			continue
		}
		if err != nil {
			return 0, err
		}
	}
}

func (m *multiInputReader) Close() error {
	m.closed = true
	if m.curCloser != nil {
		return m.curCloser.Close()
	}
	return nil
}

// openInputs concatenates the inputs into one document; "-" reads stdin.
func openInputs(ctx context.Context, args []string, stdin io.Reader) (io.Reader, io.Closer, error) {
	if len(args) == 0 {
		return stdin, nil, nil
	}
	sources := make([]inputSource, 0, len(args))
	for _, raw := range args {
		if raw == "-" {
			sources = append(sources, inputSource{open: func() (io.Reader, io.Closer, error) {
				return stdin, nil, nil
			}})
			continue
		}
		src, err := makeInputSource(ctx, raw)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, src)
	}
	m := &multiInputReader{sources: sources}
	return m, m, nil
}

func makeInputSource(ctx context.Context, raw string) (inputSource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return inputSource{}, fmt.Errorf("empty input argument")
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return inputSource{open: func() (io.Reader, io.Closer, error) {
				body, err := cmark.Fetch(ctx, nil, raw)
				if err != nil {
					return nil, nil, err
				}
				return body, body, nil
			}}, nil
		case "file":
			path := u.Path
			if path == "" {
				path = u.Host
			}
			if unescaped, err := url.PathUnescape(path); err == nil {
				path = unescaped
			}
			return inputSource{open: func() (io.Reader, io.Closer, error) {
				return openFile(path)
			}}, nil
		}
	}
	return inputSource{open: func() (io.Reader, io.Closer, error) {
		return openFile(raw)
	}}, nil
}

func openFile(path string) (io.Reader, io.Closer, error) {
	clean := normalizePath(path)
	f, err := os.Open(clean)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func resolveOutput(path string, stdout io.Writer) (io.Writer, io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		return stdout, nil, nil
	}
	clean := normalizePath(path)
	dir := filepath.Dir(clean)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(clean)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				path = home
			} else {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		return abs
	}
	return path
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
