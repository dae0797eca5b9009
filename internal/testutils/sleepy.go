package testutils

import (
	"bytes"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// NewSleepy zips files into an in-memory .sleepy capture.
func NewSleepy(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// SleepyCapture is a small, well formed capture: main calls work calls
// compute, plus one address without a symbol.
var SleepyCapture = map[string]string{
	"Stats.txt": "Filename: app.exe\nDuration: 1.500000\nDate: 2024-01-01\nSamples: 3\n",
	"Symbols.txt": `0x1000 app "compute" "C:\src\compute.cpp" 10
0x2000 app "work" "C:\src\work.cpp" 20
0x3000 app "main" "C:\src\main.cpp" 30
`,
	"Callstacks.txt": `0.250000 0x1000 0x2000 0x3000
0.500000 0x2000 0x3000
0.125000 0xdead
`,
	"Threads.txt": "1\nmain thread\n",
}
