package main

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"pprof-blame/internal/blame"
	"pprof-blame/internal/loader"
)

const (
	defaultArgMode        = "windowed"
	defaultArgOutput      = "text"
	defaultArgSampleIndex = 0
	defaultArgWorkers     = 1
)

// Help strings for command line arguments
var (
	fileHelp        = "Path to the profile file (pprof .pb/.pb.gz/.pb.zst, .cpuprofile JSON or .sleepy)."
	blameHelp       = "Regex pattern for functions to blame."
	parentHelp      = "Optional regex pattern for a parent that must be an ancestor of the blamed function."
	excludeHelp     = "Optional regex pattern for functions that, between the leaf and the blamed function, exclude a sample."
	modeHelp        = "Classification mode: windowed, toggle-strict or toggle-permissive."
	formatHelp      = "Force the input format (" + strings.Join(loader.Formats(), ", ") + "). Detected when empty."
	sampleTypeHelp  = "Name of the sample value to aggregate, e.g. cpu or alloc_space. Overrides -sample-index."
	sampleIndexHelp = "Index of the sample value to aggregate."
	framesHelp      = "Print the per-frame breakdown of blamed, parent and excluded samples."
	outputHelp      = "Output format: text or json."
	workersHelp     = "Number of goroutines classifying samples."
	verboseHelp     = "Enable debug logging, including a trace of every classification."
)

type arguments struct {
	file        string
	blame       string
	parent      string
	exclude     string
	mode        string
	format      string
	sampleType  string
	sampleIndex int
	frames      bool
	output      string
	workers     int
	verbose     bool

	fs *flag.FlagSet
}

func (args *arguments) SanityCheck() error {
	if args.file == "" {
		return errors.New("no profile file specified")
	}
	if args.blame == "" {
		return errors.New("no blame pattern specified")
	}

	mode, err := blame.ParseMode(args.mode)
	if err != nil {
		return err
	}
	if mode != blame.Windowed && args.parent != "" {
		return fmt.Errorf("-parent is not supported with -mode %s", args.mode)
	}

	if args.format != loader.Auto && !slices.Contains(loader.Formats(), args.format) {
		return fmt.Errorf("unknown input format %q", args.format)
	}

	switch args.output {
	case "text", "json":
	default:
		return fmt.Errorf("output must be either text or json, not %q", args.output)
	}

	if args.sampleIndex < 0 {
		return errors.New("sample index must not be negative")
	}
	if args.workers < 1 {
		return errors.New("workers must be at least 1")
	}

	return nil
}

func parseArgs(argv []string) (*arguments, error) {
	var args arguments

	fs := flag.NewFlagSet("pprof-blame", flag.ContinueOnError)

	fs.StringVar(&args.file, "file", "", fileHelp)
	fs.StringVar(&args.blame, "blame", "", blameHelp)
	fs.StringVar(&args.parent, "parent", "", parentHelp)
	fs.StringVar(&args.exclude, "exclude", "", excludeHelp)
	fs.StringVar(&args.mode, "mode", defaultArgMode, modeHelp)
	fs.StringVar(&args.format, "format", loader.Auto, formatHelp)
	fs.StringVar(&args.sampleType, "sample-type", "", sampleTypeHelp)
	fs.IntVar(&args.sampleIndex, "sample-index", defaultArgSampleIndex, sampleIndexHelp)
	fs.BoolVar(&args.frames, "frames", false, framesHelp)
	fs.StringVar(&args.output, "output", defaultArgOutput, outputHelp)
	fs.IntVar(&args.workers, "workers", defaultArgWorkers, workersHelp)
	fs.BoolVar(&args.verbose, "verbose", false, verboseHelp)

	fs.String("config", "", "Path to a config file with one 'flag value' per line.")

	args.fs = fs

	return &args, ff.Parse(fs, argv,
		ff.WithEnvVarPrefix("PPROF_BLAME"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	)
}
