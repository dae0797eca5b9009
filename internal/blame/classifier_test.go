package blame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pprof-blame/internal/blame"
	"pprof-blame/internal/profile"
)

// stack builds a leaf first stack from frame names. A name of the form
// "name@file" also sets the file.
func stack(names ...string) profile.Stack {
	reg := profile.NewRegistry()
	ids := make([]profile.FrameID, len(names))
	for i, n := range names {
		f := profile.Frame{Name: n}
		for j := 0; j < len(n); j++ {
			if n[j] == '@' {
				f = profile.Frame{Name: n[:j], File: n[j+1:]}
				break
			}
		}
		ids[i] = reg.AddFunction(uint64(i), f)
	}
	return profile.NewStack(reg, ids...)
}

func classifier(t *testing.T, mode blame.Mode, b, parent, exclude string) blame.Classifier {
	t.Helper()
	ps, err := blame.Compile(b, parent, exclude)
	require.NoError(t, err)
	c, err := blame.NewClassifier(mode, ps)
	require.NoError(t, err)
	return c
}

func TestWindowed(t *testing.T) {
	tests := []struct {
		name    string
		stack   []string
		blame   string
		parent  string
		exclude string
		kind    blame.Kind
		frame   string
		parentF string
	}{
		{
			name:  "blame only",
			stack: []string{"A", "B", "C"},
			blame: "^B$",
			kind:  blame.Blamed, frame: "B",
		},
		{
			name:   "parent above blame",
			stack:  []string{"A", "B", "C"},
			blame:  "^A$",
			parent: "^C$",
			kind:   blame.Blamed, frame: "A", parentF: "C",
		},
		{
			name:    "exclude below blame",
			stack:   []string{"A", "B", "C"},
			blame:   "^B$",
			exclude: "^A$",
			kind:    blame.Excluded, frame: "B",
		},
		{
			name:    "exclude above blame is irrelevant",
			stack:   []string{"A", "B", "C"},
			blame:   "^B$",
			exclude: "^C$",
			kind:    blame.Blamed, frame: "B",
		},
		{
			name:  "no blame match",
			stack: []string{"A", "B", "C"},
			blame: "^Z$",
			kind:  blame.Unmatched,
		},
		{
			name:   "parent missing",
			stack:  []string{"A", "B", "C"},
			blame:  "^A$",
			parent: "^Z$",
			kind:   blame.ParentNotFound,
		},
		{
			name:   "blame only above parent",
			stack:  []string{"A", "B", "C"},
			blame:  "^C$",
			parent: "^B$",
			kind:   blame.Unmatched, parentF: "B",
		},
		{
			name:   "blame equal to parent frame is outside the window",
			stack:  []string{"A", "B", "C"},
			blame:  "^B$",
			parent: "^B$",
			kind:   blame.Unmatched, parentF: "B",
		},
		{
			name:  "innermost blame wins",
			stack: []string{"x", "run1", "y", "run2"},
			blame: "^run",
			kind:  blame.Blamed, frame: "run1",
		},
		{
			name:   "innermost parent wins",
			stack:  []string{"A", "P1", "B", "P2"},
			blame:  "^B$",
			parent: "^P",
			kind:   blame.Unmatched, parentF: "P1",
		},
		{
			name:    "exclude at blame index does not count",
			stack:   []string{"A", "gc", "C"},
			blame:   "gc",
			exclude: "gc",
			kind:    blame.Blamed, frame: "gc",
		},
		{
			name:  "file name matches",
			stack: []string{"anon@net/http.go", "main@main.go"},
			blame: "net/http",
			kind:  blame.Blamed, frame: "anon",
		},
		{
			name:    "parent, blame and exclude",
			stack:   []string{"memcpy", "lock", "write", "flush", "handler"},
			blame:   "^write$",
			parent:  "^handler$",
			exclude: "^lock$",
			kind:    blame.Excluded, frame: "write", parentF: "handler",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := classifier(t, blame.Windowed, tc.blame, tc.parent, tc.exclude)
			out := c.Classify(stack(tc.stack...), blame.NopTracer)

			assert.Equal(t, tc.kind, out.Kind)
			assert.Equal(t, tc.frame, out.Frame.Name)
			assert.Equal(t, tc.parentF != "", out.ParentMatched)
			assert.Equal(t, tc.parentF, out.Parent.Name)
		})
	}
}

func TestWindowedWithoutParentSearchesWholeStack(t *testing.T) {
	c := classifier(t, blame.Windowed, "root", "", "")
	out := c.Classify(stack("a", "b", "c", "root"), blame.NopTracer)
	assert.Equal(t, blame.Blamed, out.Kind)
	assert.False(t, out.ParentMatched)
}

func TestToggle(t *testing.T) {
	// stacks are leaf first, toggle modes walk them from the root
	tests := []struct {
		name       string
		stack      []string
		blame      string
		exclude    string
		strict     blame.Kind
		permissive blame.Kind
		frame      string
	}{
		{
			name:   "blame only",
			stack:  []string{"A", "B", "C"},
			blame:  "^B$",
			strict: blame.Blamed, permissive: blame.Blamed, frame: "B",
		},
		{
			name:    "exclude below blame cancels",
			stack:   []string{"A", "B", "C"},
			blame:   "^B$",
			exclude: "^A$",
			strict:  blame.Unmatched, permissive: blame.Unmatched,
		},
		{
			name:    "exclude above blame is ignored",
			stack:   []string{"A", "B", "C"},
			blame:   "^B$",
			exclude: "^C$",
			strict:  blame.Blamed, permissive: blame.Blamed, frame: "B",
		},
		{
			name:    "re-entry after cancel",
			stack:   []string{"leaf", "run", "gc", "run", "main"},
			blame:   "^run$",
			exclude: "^gc$",
			strict:  blame.Unmatched, permissive: blame.Blamed, frame: "run",
		},
		{
			name:   "no match",
			stack:  []string{"A"},
			blame:  "^B$",
			strict: blame.Unmatched, permissive: blame.Unmatched,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := stack(tc.stack...)

			strict := classifier(t, blame.ToggleStrict, tc.blame, "", tc.exclude).
				Classify(s, blame.NopTracer)
			assert.Equal(t, tc.strict, strict.Kind, "strict")

			permissive := classifier(t, blame.TogglePermissive, tc.blame, "", tc.exclude).
				Classify(s, blame.NopTracer)
			assert.Equal(t, tc.permissive, permissive.Kind, "permissive")
			assert.Equal(t, tc.frame, permissive.Frame.Name)
		})
	}
}

func TestToggleNeverExcludes(t *testing.T) {
	for _, mode := range []blame.Mode{blame.ToggleStrict, blame.TogglePermissive} {
		c := classifier(t, mode, "B", "", "A")
		out := c.Classify(stack("A", "B"), blame.NopTracer)
		assert.NotEqual(t, blame.Excluded, out.Kind)
	}
}

func TestToggleStrictStopsAtCancel(t *testing.T) {
	var visited []string
	tracer := blame.TracerFunc(func(ev blame.Event) {
		if ev.Kind == blame.FrameVisited {
			visited = append(visited, ev.Frame.Name)
		}
	})

	c := classifier(t, blame.ToggleStrict, "^run$", "", "^gc$")
	c.Classify(stack("leaf", "run", "gc", "run", "main"), tracer)
	assert.Equal(t, []string{"main", "run", "gc"}, visited)

	visited = nil
	c = classifier(t, blame.TogglePermissive, "^run$", "", "^gc$")
	c.Classify(stack("leaf", "run", "gc", "run", "main"), tracer)
	assert.Equal(t, []string{"main", "run", "gc", "run", "leaf"}, visited)
}

func TestNewClassifierRejectsParentInToggleMode(t *testing.T) {
	ps, err := blame.Compile("a", "b", "")
	require.NoError(t, err)

	_, err = blame.NewClassifier(blame.ToggleStrict, ps)
	assert.ErrorIs(t, err, blame.ErrParentUnsupported)
	_, err = blame.NewClassifier(blame.TogglePermissive, ps)
	assert.ErrorIs(t, err, blame.ErrParentUnsupported)

	c, err := blame.NewClassifier(blame.Windowed, ps)
	require.NoError(t, err)
	assert.Equal(t, blame.Windowed, c.Mode())
}

func TestCompile(t *testing.T) {
	_, err := blame.Compile("", "", "")
	assert.ErrorIs(t, err, blame.ErrNoBlamePattern)

	for _, args := range [][3]string{{"("}, {"a", "["}, {"a", "", "*"}} {
		_, err := blame.Compile(args[0], args[1], args[2])
		assert.Error(t, err, "%q", args)
	}

	ps, err := blame.Compile("a", "", "")
	require.NoError(t, err)
	assert.Nil(t, ps.Parent)
	assert.Nil(t, ps.Exclude)
}

func TestParseMode(t *testing.T) {
	for _, m := range []blame.Mode{blame.Windowed, blame.ToggleStrict, blame.TogglePermissive} {
		got, err := blame.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := blame.ParseMode("toggle")
	assert.Error(t, err)
}

func TestWindowedTraceEvents(t *testing.T) {
	var kinds []blame.EventKind
	tracer := blame.TracerFunc(func(ev blame.Event) { kinds = append(kinds, ev.Kind) })

	c := classifier(t, blame.Windowed, "^B$", "^C$", "^A$")
	out := c.Classify(stack("A", "B", "C"), tracer)

	assert.Equal(t, blame.Excluded, out.Kind)
	assert.Equal(t, []blame.EventKind{
		blame.ParentMatched, blame.BlameMatched, blame.ExcludeMatched, blame.Verdict,
	}, kinds)
}
