// Package pprof decodes the profile.proto wire format into the unified
// profile model. String table indices are kept raw until the whole message
// is read, so an index past the end of the table degrades to a placeholder
// name instead of failing the decode.
package pprof

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"pprof-blame/internal/profile"
)

// Format is the name reported in profile.Profile.Format.
const Format = "pprof"

// profile.proto field numbers.
const (
	profileSampleType    protowire.Number = 1
	profileSample        protowire.Number = 2
	profileLocation      protowire.Number = 4
	profileFunction      protowire.Number = 5
	profileStringTable   protowire.Number = 6
	profileDurationNanos protowire.Number = 10

	valueTypeType protowire.Number = 1
	valueTypeUnit protowire.Number = 2

	sampleLocationID protowire.Number = 1
	sampleValue      protowire.Number = 2

	locationID   protowire.Number = 1
	locationLine protowire.Number = 4

	lineFunctionID protowire.Number = 1

	functionID       protowire.Number = 1
	functionName     protowire.Number = 2
	functionFilename protowire.Number = 4
)

type rawValueType struct {
	typ, unit int64
}

type rawSample struct {
	locations []uint64
	values    []uint64
}

type rawLocation struct {
	id        uint64
	functions []uint64
}

type rawFunction struct {
	id             uint64
	name, filename int64
}

type rawProfile struct {
	sampleTypes   []rawValueType
	samples       []rawSample
	locations     []rawLocation
	functions     []rawFunction
	strings       []string
	durationNanos int64
}

// Decode parses an uncompressed profile.proto message.
func Decode(data []byte) (*profile.Profile, error) {
	var raw rawProfile
	if err := walk(data, raw.field); err != nil {
		return nil, fmt.Errorf("malformed pprof profile: %w", err)
	}
	return raw.build(), nil
}

func (p *rawProfile) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case profileSampleType:
		var vt rawValueType
		n, err := message(typ, b, vt.field)
		p.sampleTypes = append(p.sampleTypes, vt)
		return n, err
	case profileSample:
		var s rawSample
		n, err := message(typ, b, s.field)
		p.samples = append(p.samples, s)
		return n, err
	case profileLocation:
		var l rawLocation
		n, err := message(typ, b, l.field)
		p.locations = append(p.locations, l)
		return n, err
	case profileFunction:
		var f rawFunction
		n, err := message(typ, b, f.field)
		p.functions = append(p.functions, f)
		return n, err
	case profileStringTable:
		v, n, err := consumeBytes(typ, b)
		p.strings = append(p.strings, string(v))
		return n, err
	case profileDurationNanos:
		v, n, err := consumeVarint(typ, b)
		p.durationNanos = int64(v)
		return n, err
	}
	return skip(num, typ, b)
}

func (vt *rawValueType) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case valueTypeType:
		v, n, err := consumeVarint(typ, b)
		vt.typ = int64(v)
		return n, err
	case valueTypeUnit:
		v, n, err := consumeVarint(typ, b)
		vt.unit = int64(v)
		return n, err
	}
	return skip(num, typ, b)
}

func (s *rawSample) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case sampleLocationID:
		return consumeRepeatedVarint(typ, b, &s.locations)
	case sampleValue:
		return consumeRepeatedVarint(typ, b, &s.values)
	}
	return skip(num, typ, b)
}

func (l *rawLocation) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case locationID:
		v, n, err := consumeVarint(typ, b)
		l.id = v
		return n, err
	case locationLine:
		var fnID uint64
		n, err := message(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == lineFunctionID {
				v, n, err := consumeVarint(typ, b)
				fnID = v
				return n, err
			}
			return skip(num, typ, b)
		})
		l.functions = append(l.functions, fnID)
		return n, err
	}
	return skip(num, typ, b)
}

func (f *rawFunction) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case functionID:
		v, n, err := consumeVarint(typ, b)
		f.id = v
		return n, err
	case functionName:
		v, n, err := consumeVarint(typ, b)
		f.name = int64(v)
		return n, err
	case functionFilename:
		v, n, err := consumeVarint(typ, b)
		f.filename = int64(v)
		return n, err
	}
	return skip(num, typ, b)
}

func (p *rawProfile) build() *profile.Profile {
	strs := profile.StringTable(p.strings)
	reg := profile.NewRegistry()

	// Only function names are matched for pprof input; file names stay empty.
	for _, f := range p.functions {
		reg.AddFunction(f.id, profile.Frame{Name: strs.Get(f.name)})
	}
	for _, l := range p.locations {
		reg.AddLocation(l.id, l.functions...)
	}

	out := &profile.Profile{
		Format:      Format,
		SampleTypes: make([]profile.ValueType, 0, len(p.sampleTypes)),
		Samples:     make([]profile.Sample, 0, len(p.samples)),
		Registry:    reg,
		Duration:    time.Duration(p.durationNanos),
	}
	for _, vt := range p.sampleTypes {
		out.SampleTypes = append(out.SampleTypes, profile.ValueType{
			Type: strs.Get(vt.typ),
			Unit: strs.Get(vt.unit),
		})
	}
	for _, s := range p.samples {
		values := make([]int64, len(s.values))
		for i, v := range s.values {
			values[i] = int64(v)
		}
		out.Samples = append(out.Samples, profile.Sample{
			Locations: s.locations,
			Values:    values,
		})
	}
	return out
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk calls fn for every field of the message in b.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	return nil
}

// message decodes an embedded message field with fn.
func message(typ protowire.Type, b []byte, fn fieldFunc) (int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	return n, walk(v, fn)
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

var errWireType = errors.New("unexpected wire type")

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// consumeRepeatedVarint accepts both packed and unpacked encodings.
func consumeRepeatedVarint(typ protowire.Type, b []byte, dst *[]uint64) (int, error) {
	if typ == protowire.VarintType {
		v, n, err := consumeVarint(typ, b)
		if err != nil {
			return 0, err
		}
		*dst = append(*dst, v)
		return n, nil
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*dst = append(*dst, v)
		packed = packed[m:]
	}
	return n, nil
}
