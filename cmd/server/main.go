// server exposes blame analysis and profile exploration as MCP tools over
// stdio.
package main

import (
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
)

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{})
	if os.Getenv("PPROF_BLAME_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	s := newServer(newProfileCache())
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func filePathArg() mcp.ToolOption {
	return mcp.WithString("file_path",
		mcp.Required(),
		mcp.Description("Path to the loaded profile file"),
	)
}

func sampleTypeArg() mcp.ToolOption {
	return mcp.WithString("sample_type",
		mcp.Description("Name of the sample value to use, e.g. cpu or alloc_space (default: first value)"),
	)
}

func newServer(cache *profileCache) *server.MCPServer {
	h := &handlers{cache: cache}

	s := server.NewMCPServer(
		"pprof-blame",
		"1.0.0",
		server.WithLogging(),
	)

	s.AddTool(mcp.NewTool("load_profile",
		mcp.WithDescription("Load a profile (pprof .pb/.pb.gz, V8 .cpuprofile JSON or Very Sleepy .sleepy) for analysis"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the profile file"),
		),
		mcp.WithString("format",
			mcp.Description("Force the input format: pprof, cpuprofile or sleepy (default: detect)"),
		),
	), h.loadProfile)

	s.AddTool(mcp.NewTool("blame",
		mcp.WithDescription("Measure how much of the profile is spent in functions matching a blame regex, "+
			"optionally only below a parent function and not through an excluded function."),
		filePathArg(),
		mcp.WithString("blame",
			mcp.Required(),
			mcp.Description("Regex for the functions to blame"),
		),
		mcp.WithString("parent",
			mcp.Description("Regex for a function that must be an ancestor of the blamed function"),
		),
		mcp.WithString("exclude",
			mcp.Description("Regex for functions that exclude a sample when found between the leaf and the blamed function"),
		),
		mcp.WithString("mode",
			mcp.Description("windowed (default), toggle-strict or toggle-permissive"),
		),
		sampleTypeArg(),
		mcp.WithBoolean("frames",
			mcp.Description("Include the per-frame breakdown (default: true)"),
		),
	), h.blame)

	s.AddTool(mcp.NewTool("find_hotspots",
		mcp.WithDescription("Find the functions with the highest inclusive cost in the profile."),
		filePathArg(),
		mcp.WithNumber("top_n",
			mcp.Description("Number of top hotspots to return (default: 10)"),
		),
		sampleTypeArg(),
	), h.findHotspots)

	s.AddTool(mcp.NewTool("find_bottom_functions",
		mcp.WithDescription("Find leaf functions (functions at the bottom of callstacks - where the sampled work happens)."),
		filePathArg(),
		mcp.WithNumber("top_n",
			mcp.Description("Number of top functions to return (default: 10)"),
		),
		sampleTypeArg(),
	), h.findBottomFunctions)

	s.AddTool(mcp.NewTool("get_statistics",
		mcp.WithDescription("Get statistics about the profile: total value, stack depths, unique functions and files."),
		filePathArg(),
		sampleTypeArg(),
	), h.getStatistics)

	s.AddTool(mcp.NewTool("view_callstack",
		mcp.WithDescription("View the resolved call stack of one sample, leaf first."),
		filePathArg(),
		mcp.WithNumber("sample_index",
			mcp.Required(),
			mcp.Description("Index of the sample to view (1-based)"),
		),
	), h.viewCallstack)

	return s
}
