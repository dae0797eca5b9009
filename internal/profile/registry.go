package profile

// Registry owns every Frame of a profile. Functions are keyed by the
// decoder's function id, locations map to the function ids of their
// (possibly inlined) lines.
type Registry struct {
	frames    []Frame
	functions map[uint64]FrameID
	locations map[uint64][]uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[uint64]FrameID),
		locations: make(map[uint64][]uint64),
	}
}

// AddFunction stores f under id. A later call with the same id replaces the
// mapping but keeps the earlier frame in the arena.
func (r *Registry) AddFunction(id uint64, f Frame) FrameID {
	fid := FrameID(len(r.frames))
	r.frames = append(r.frames, f)
	r.functions[id] = fid
	return fid
}

// AddLocation records the functions executing at location id, innermost
// first.
func (r *Registry) AddLocation(id uint64, functionIDs ...uint64) {
	r.locations[id] = functionIDs
}

// Frame returns the frame stored at id.
func (r *Registry) Frame(id FrameID) Frame {
	return r.frames[id]
}

// Function looks up the frame registered under a function id.
func (r *Registry) Function(id uint64) (FrameID, bool) {
	fid, ok := r.functions[id]
	return fid, ok
}

// Len returns the number of frames in the arena.
func (r *Registry) Len() int {
	return len(r.frames)
}

// Resolve turns location ids into a stack. Locations and functions that
// cannot be found are dropped; the remaining order is preserved.
func (r *Registry) Resolve(locationIDs []uint64) Stack {
	ids := make([]FrameID, 0, len(locationIDs))
	for _, locID := range locationIDs {
		fnIDs, ok := r.locations[locID]
		if !ok {
			continue
		}
		for _, fnID := range fnIDs {
			if fid, ok := r.functions[fnID]; ok {
				ids = append(ids, fid)
			}
		}
	}
	return Stack{reg: r, ids: ids}
}

// Stack is a resolved call stack. It references frames in its Registry
// rather than copying them.
type Stack struct {
	reg *Registry
	ids []FrameID
}

// NewStack builds a stack directly from frame ids.
func NewStack(reg *Registry, ids ...FrameID) Stack {
	return Stack{reg: reg, ids: ids}
}

// Len returns the stack depth.
func (s Stack) Len() int { return len(s.ids) }

// At returns the frame at depth i, 0 being the leaf.
func (s Stack) At(i int) Frame { return s.reg.frames[s.ids[i]] }

// ID returns the frame id at depth i.
func (s Stack) ID(i int) FrameID { return s.ids[i] }

// Names returns the frame names, leaf first.
func (s Stack) Names() []string {
	names := make([]string, len(s.ids))
	for i, id := range s.ids {
		names[i] = s.reg.frames[id].Name
	}
	return names
}

// StringTable resolves string table indices. Out of range indices yield
// InvalidIndex instead of an error so a corrupt table only degrades names.
type StringTable []string

// Get returns the string at index i.
func (t StringTable) Get(i int64) string {
	if i < 0 || i >= int64(len(t)) {
		return InvalidIndex
	}
	return t[i]
}
