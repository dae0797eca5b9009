package sleepy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"pprof-blame/internal/profile"
)

var (
	errNoSymbols    = errors.New("missing Symbols.txt")
	errNoCallstacks = errors.New("missing Callstacks.txt")
)

// Decode parses a sleepy capture (a ZIP archive) held in memory.
func Decode(data []byte) (*profile.Profile, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}

	var (
		stats      Stats
		symbols    []Symbol
		callstacks []Callstack
		seen       = make(map[string]bool)
	)
	for _, file := range reader.File {
		var parse func(io.Reader) error
		switch file.Name {
		case "Stats.txt":
			parse = func(r io.Reader) error { return parseStats(r, &stats) }
		case "Symbols.txt":
			parse = func(r io.Reader) error { return parseSymbols(r, &symbols) }
		case "Callstacks.txt":
			parse = func(r io.Reader) (err error) {
				callstacks, err = parseCallstacks(r)
				return err
			}
		default:
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in zip: %w", file.Name, err)
		}
		err = parse(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Name, err)
		}
		seen[file.Name] = true
	}

	if !seen["Symbols.txt"] {
		return nil, errNoSymbols
	}
	if !seen["Callstacks.txt"] {
		return nil, errNoCallstacks
	}
	return buildProfile(stats, symbols, callstacks), nil
}

func buildProfile(stats Stats, symbols []Symbol, callstacks []Callstack) *profile.Profile {
	reg := profile.NewRegistry()
	for _, sym := range symbols {
		reg.AddFunction(sym.Address, profile.Frame{Name: sym.ProcName, File: sym.FilePath})
		reg.AddLocation(sym.Address, sym.Address)
	}

	p := &profile.Profile{
		Format:      Format,
		SampleTypes: []profile.ValueType{{Type: "wall", Unit: "nanoseconds"}},
		Samples:     make([]profile.Sample, 0, len(callstacks)),
		Registry:    reg,
		Duration:    seconds(stats.Duration),
	}
	for _, cs := range callstacks {
		d := seconds(cs.Duration)
		p.Samples = append(p.Samples, profile.Sample{
			Locations: cs.Addresses,
			Values:    []int64{d.Nanoseconds()},
			Duration:  d,
		})
	}
	return p
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func parseAddress(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("invalid address format %q (expected 0x prefix)", s)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

func parseStats(r io.Reader, stats *Stats) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok {
			continue
		}

		switch key {
		case "Filename":
			stats.Filename = value
		case "Duration":
			d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return fmt.Errorf("invalid Duration value: %w", err)
			}
			stats.Duration = d
		case "Date":
			stats.Date = value
		case "Samples":
			numSamples, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("invalid Samples value: %w", err)
			}
			stats.NumSamples = numSamples
		}
	}
	return scanner.Err()
}

// splitQuoted splits a Symbols.txt line on spaces outside double quotes.
func splitQuoted(line string) []string {
	fields := []string{}
	inQuote := false
	current := strings.Builder{}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, current.String())
}

func parseSymbols(r io.Reader, symbols *[]Symbol) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitQuoted(line)
		if len(fields) < 5 {
			return fmt.Errorf("malformed line in Symbols.txt: %s", line)
		}

		addr, err := parseAddress(fields[0])
		if err != nil {
			return err
		}
		lineNumber, err := strconv.Atoi(fields[4])
		if err != nil {
			return fmt.Errorf("invalid line number in Symbols.txt: %w (line: %s)", err, line)
		}

		*symbols = append(*symbols, Symbol{
			Address:    addr,
			ModuleName: fields[1],
			ProcName:   fields[2],
			FilePath:   fields[3],
			LineNumber: lineNumber,
		})
	}
	return scanner.Err()
}

func parseCallstacks(r io.Reader) ([]Callstack, error) {
	var callstacks []Callstack
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		// Format: "Duration Address1 Address2 ..."
		// Example: "0.001584 0x7ff7ee6f157c 0x7ff7ee6fa3e4 0x7ffffce97374"
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		duration, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", parts[0], err)
		}

		addresses := make([]uint64, 0, len(parts)-1)
		for _, s := range parts[1:] {
			addr, err := parseAddress(s)
			if err != nil {
				return nil, err
			}
			addresses = append(addresses, addr)
		}

		callstacks = append(callstacks, Callstack{
			Duration:  duration,
			Addresses: addresses,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading Callstacks.txt: %w", err)
	}

	return callstacks, nil
}
