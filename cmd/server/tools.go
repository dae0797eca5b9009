package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	log "github.com/sirupsen/logrus"

	"pprof-blame/internal/analyzer"
	"pprof-blame/internal/blame"
	"pprof-blame/internal/loader"
	"pprof-blame/internal/profile"
	"pprof-blame/internal/report"
)

const notLoaded = "Profile not loaded. Use load_profile tool first"

type handlers struct {
	cache *profileCache
}

// lookup returns the cached profile named by file_path and the value column
// selected by sample_type.
func (h *handlers) lookup(request mcp.CallToolRequest) (*profile.Profile, int, *mcp.CallToolResult) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return nil, 0, mcp.NewToolResultError(err.Error())
	}

	p, ok := h.cache.get(filePath)
	if !ok {
		return nil, 0, mcp.NewToolResultError(notLoaded)
	}

	valueIndex := 0
	if st := request.GetString("sample_type", ""); st != "" {
		idx, ok := p.SampleTypeIndex(st)
		if !ok {
			return nil, 0, mcp.NewToolResultError(fmt.Sprintf("Profile has no sample type %q", st))
		}
		valueIndex = idx
	}
	return p, valueIndex, nil
}

func topN(request mcp.CallToolRequest) int {
	if n := int(request.GetFloat("top_n", 10)); n > 0 {
		return n
	}
	return 10
}

func (h *handlers) loadProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := loader.Load(filePath, loader.Options{Format: request.GetString("format", loader.Auto)})
	if err != nil {
		log.WithError(err).WithField("path", filePath).Warn("Failed to load profile")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load profile: %v", err)), nil
	}
	h.cache.put(filePath, p)

	types := make([]string, 0, len(p.SampleTypes))
	for _, st := range p.SampleTypes {
		types = append(types, st.Type+"/"+st.Unit)
	}

	result := fmt.Sprintf(`Profile loaded successfully!

File: %s
Format: %s
Duration: %s
Sample types: %s
Samples: %d
Frames: %d

Use other tools to analyze this profile.
`,
		filePath,
		p.Format,
		p.Duration,
		strings.Join(types, ", "),
		len(p.Samples),
		p.Registry.Len(),
	)

	return mcp.NewToolResultText(result), nil
}

func (h *handlers) blame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, valueIndex, errResult := h.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	blamePattern, err := request.RequireString("blame")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patterns, err := blame.Compile(blamePattern,
		request.GetString("parent", ""), request.GetString("exclude", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := blame.ParseMode(request.GetString("mode", blame.Windowed.String()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	classifier, err := blame.NewClassifier(mode, patterns)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := blame.Options{Classifier: classifier, ValueIndex: valueIndex}
	if log.IsLevelEnabled(log.DebugLevel) {
		opts.Tracer = blame.LogTracer(log.StandardLogger())
	}
	result := blame.Analyze(p, opts)

	var sb strings.Builder
	sb.WriteString("🔎 BLAME ANALYSIS\n")
	sb.WriteString("═══════════════════════════════════════════════════\n\n")
	sb.WriteString(report.Text(result, report.Options{
		Unit:   p.Unit(valueIndex),
		Frames: request.GetBool("frames", true),
	}))

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) findHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, valueIndex, errResult := h.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	hotspots := analyzer.FindHotspots(p, valueIndex, topN(request))
	unit := p.Unit(valueIndex)

	var sb strings.Builder
	sb.WriteString("🔥 TOP HOTSPOTS (Functions With The Highest Inclusive Cost)\n")
	sb.WriteString("═══════════════════════════════════════════════════\n\n")

	if len(hotspots) == 0 {
		sb.WriteString("No hotspots found.\n")
	} else {
		for i, hs := range hotspots {
			sb.WriteString(analyzer.FormatHotspot(hs, i+1, func(v int64) string {
				return report.FormatValue(v, unit)
			}))
			sb.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) findBottomFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, valueIndex, errResult := h.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	bottomFuncs := analyzer.FindBottomFunctions(p, valueIndex, topN(request))
	unit := p.Unit(valueIndex)

	var sb strings.Builder
	sb.WriteString("🎯 LEAF FUNCTIONS (Where The Sampled Work Happens)\n")
	sb.WriteString("═══════════════════════════════════════════════════\n\n")

	if len(bottomFuncs) == 0 {
		sb.WriteString("No leaf functions found.\n")
	} else {
		for i, hs := range bottomFuncs {
			sb.WriteString(analyzer.FormatHotspot(hs, i+1, func(v int64) string {
				return report.FormatValue(v, unit)
			}))
			sb.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) getStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, valueIndex, errResult := h.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	stats := analyzer.ComputeStatistics(p, valueIndex)

	var sb strings.Builder
	sb.WriteString("📊 PROFILE STATISTICS\n")
	sb.WriteString("═══════════════════════════════════════════════════\n\n")

	sb.WriteString(fmt.Sprintf("Total Value: %s\n", report.FormatValue(stats.TotalValue, p.Unit(valueIndex))))
	sb.WriteString(fmt.Sprintf("Total Samples: %d (%d with no resolvable frames)\n", stats.TotalSamples, stats.EmptySamples))
	sb.WriteString(fmt.Sprintf("Total Frames: %d\n\n", stats.TotalFrames))

	sb.WriteString("Call Stack Depth Statistics:\n")
	sb.WriteString(fmt.Sprintf("  Average: %.2f frames\n", stats.AverageStackDepth))
	sb.WriteString(fmt.Sprintf("  Maximum: %d frames\n", stats.MaxStackDepth))
	sb.WriteString(fmt.Sprintf("  Minimum: %d frames\n\n", stats.MinStackDepth))

	sb.WriteString("Unique Elements:\n")
	sb.WriteString(fmt.Sprintf("  Functions: %d\n", stats.UniqueFunctions))
	sb.WriteString(fmt.Sprintf("  Files: %d\n", stats.UniqueFiles))

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *handlers) viewCallstack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, _, errResult := h.lookup(request)
	if errResult != nil {
		return errResult, nil
	}

	idx, err := request.RequireFloat("sample_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	index := int(idx) - 1
	if index < 0 || index >= len(p.Samples) {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid sample index. Valid range: 1-%d", len(p.Samples))), nil
	}

	s := &p.Samples[index]
	stack := p.Stack(s)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📞 SAMPLE #%d\n", index+1))
	sb.WriteString("═══════════════════════════════════════════════════\n\n")
	for i, st := range p.SampleTypes {
		sb.WriteString(fmt.Sprintf("%s: %s\n", st.Type, report.FormatValue(s.Value(i), st.Unit)))
	}
	if s.Duration > 0 {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration))
	}
	sb.WriteString(fmt.Sprintf("Stack Depth: %d frames\n\n", stack.Len()))

	sb.WriteString("Call Stack (leaf first):\n\n")
	for i := 0; i < stack.Len(); i++ {
		frame := stack.At(i)
		sb.WriteString(fmt.Sprintf("%d. %s\n", i, frame.Name))
		if frame.File != "" && frame.File != "[unknown]" {
			sb.WriteString(fmt.Sprintf("   %s\n", frame.File))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}
