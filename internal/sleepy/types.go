// Package sleepy decodes Very Sleepy .sleepy captures into the unified
// profile model.
package sleepy

// Format is the name reported in profile.Profile.Format.
const Format = "sleepy"

// Stats represents the data from Stats.txt
type Stats struct {
	Filename   string
	Duration   float64 // seconds
	Date       string
	NumSamples int
}

// Symbol represents a single entry from Symbols.txt
type Symbol struct {
	Address    uint64
	ModuleName string
	ProcName   string
	FilePath   string
	LineNumber int
}

// Callstack represents a single line of Callstacks.txt. Addresses are leaf
// first.
type Callstack struct {
	Duration  float64 // seconds
	Addresses []uint64
}
