package vectortile

import (
	"bytes"
	"encoding/binary"
)

const defaultExtent = 4096

// wire types used by the protobuf encoding below.
const (
	wireVarint = 0
	wireBytes  = 2
	wireFixed32 = 5
	wireFixed64 = 1
)

func putTag(buf *bytes.Buffer, field, wireType int) {
	putUvarint(buf, uint64(field)<<3|uint64(wireType))
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	buf.Write(scratch[:n])
}

func putLenDelim(buf *bytes.Buffer, field int, data []byte) {
	putTag(buf, field, wireBytes)
	putUvarint(buf, uint64(len(data)))
	buf.Write(data)
}

func putString(buf *bytes.Buffer, field int, s string) {
	putLenDelim(buf, field, []byte(s))
}

func putUint32(buf *bytes.Buffer, field int, v uint32) {
	putTag(buf, field, wireVarint)
	putUvarint(buf, uint64(v))
}

func putUint64(buf *bytes.Buffer, field int, v uint64) {
	putTag(buf, field, wireVarint)
	putUvarint(buf, v)
}

func putPackedUint32(buf *bytes.Buffer, field int, values []uint32) {
	if len(values) == 0 {
		return
	}
	var packed bytes.Buffer
	for _, v := range values {
		putUvarint(&packed, uint64(v))
	}
	putLenDelim(buf, field, packed.Bytes())
}

func zigzag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// Encode produces the canonical byte encoding of the tile: a protobuf
// message matching the Mapbox Vector Tile schema, with layers, features,
// keys and values written in slice order. Encoding is deterministic: equal
// Tile values always produce byte-equal output, which the assembly
// pipeline's memoization relies on.
func (t *Tile) Encode() ([]byte, error) {
	var out bytes.Buffer
	for _, layer := range t.Layers {
		var lb bytes.Buffer
		version := layer.Version
		if version == 0 {
			version = 2
		}
		putUint32(&lb, 15, version)
		putString(&lb, 1, layer.Name)
		for _, f := range layer.Features {
			fb, err := encodeFeature(f)
			if err != nil {
				return nil, err
			}
			putLenDelim(&lb, 2, fb)
		}
		for _, k := range layer.Keys {
			putString(&lb, 3, k)
		}
		for _, v := range layer.Values {
			vb := encodeValue(v)
			putLenDelim(&lb, 4, vb)
		}
		extent := layer.Extent
		if extent == 0 {
			extent = defaultExtent
		}
		putUint32(&lb, 5, extent)

		putLenDelim(&out, 3, lb.Bytes())
	}
	return out.Bytes(), nil
}

func encodeFeature(f Feature) ([]byte, error) {
	var fb bytes.Buffer
	if f.HasID {
		putUint64(&fb, 1, f.ID)
	}
	putPackedUint32(&fb, 2, f.Tags)
	if f.Type != GeomUnknown {
		putUint32(&fb, 3, uint32(f.Type))
	}
	putPackedUint32(&fb, 4, f.Geometry)
	return fb.Bytes(), nil
}

func encodeValue(v Value) []byte {
	var vb bytes.Buffer
	switch v.Kind {
	case ValueString:
		putString(&vb, 1, v.Str)
	case ValueFloat:
		putTag(&vb, 2, wireFixed32)
		var scratch [4]byte
		binary.LittleEndian.PutUint32(scratch[:], float32bits(v.Flt))
		vb.Write(scratch[:])
	case ValueDouble:
		putTag(&vb, 3, wireFixed64)
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], float64bits(v.Dbl))
		vb.Write(scratch[:])
	case ValueInt:
		putTag(&vb, 4, wireVarint)
		putUvarint(&vb, uint64(v.Int))
	case ValueUint:
		putUint64(&vb, 5, v.UInt)
	case ValueSint:
		putTag(&vb, 6, wireVarint)
		putUvarint(&vb, zigzag64(v.SInt))
	case ValueBool:
		putTag(&vb, 7, wireVarint)
		if v.Bool {
			putUvarint(&vb, 1)
		} else {
			putUvarint(&vb, 0)
		}
	}
	return vb.Bytes()
}
