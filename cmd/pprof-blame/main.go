// pprof-blame reports how much of a profile's cost is spent in a blamed
// function, optionally only below a parent function and without passing
// through an excluded one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"pprof-blame/internal/blame"
	"pprof-blame/internal/loader"
	"pprof-blame/internal/report"
)

func main() {
	log.SetReportCaller(false)
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stderr)

	if err := mainWithError(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func mainWithError(argv []string, stdout io.Writer) error {
	args, err := parseArgs(argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("failed to parse arguments: %v", err)
	}

	if err = args.SanityCheck(); err != nil {
		return err
	}

	if args.verbose {
		log.SetLevel(log.DebugLevel)
	}

	patterns, err := blame.Compile(args.blame, args.parent, args.exclude)
	if err != nil {
		return err
	}
	mode, err := blame.ParseMode(args.mode)
	if err != nil {
		return err
	}
	classifier, err := blame.NewClassifier(mode, patterns)
	if err != nil {
		return err
	}

	prof, err := loader.Load(args.file, loader.Options{Format: args.format})
	if err != nil {
		return err
	}

	valueIndex := args.sampleIndex
	if args.sampleType != "" {
		idx, ok := prof.SampleTypeIndex(args.sampleType)
		if !ok {
			return fmt.Errorf("profile has no sample type %q", args.sampleType)
		}
		valueIndex = idx
	}
	unit := prof.Unit(valueIndex)

	log.WithFields(log.Fields{
		"mode":     mode,
		"value":    valueIndex,
		"unit":     unit,
		"duration": prof.Duration,
	}).Debug("Analyzing profile")

	opts := blame.Options{
		Classifier: classifier,
		ValueIndex: valueIndex,
		Workers:    args.workers,
	}
	if args.verbose {
		opts.Tracer = blame.LogTracer(log.StandardLogger())
	}
	result := blame.Analyze(prof, opts)

	if args.output == "json" {
		return report.WriteJSON(stdout, result, mode, unit)
	}
	return report.WriteText(stdout, result, report.Options{Unit: unit, Frames: args.frames})
}
