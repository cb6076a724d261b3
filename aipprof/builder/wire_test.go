package builder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// rawProfile is the subset of profile.proto needed to check string and id references.
type rawProfile struct {
	stringTable  []string
	stringRefs   []uint64 // every string index referenced anywhere
	locationIDs  map[uint64]bool
	functionIDs  map[uint64]bool
	sampleLocs   []uint64
	lineFuncRefs []uint64
}

func decodeRaw(t *testing.T, data []byte) *rawProfile {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	rp := &rawProfile{locationIDs: map[uint64]bool{}, functionIDs: map[uint64]bool{}}
	walk(t, raw, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) {
		switch num {
		case 1, 11: // sample_type, period_type
			walk(t, v, func(num protowire.Number, typ protowire.Type, _ []byte, n uint64) {
				if num == 1 || num == 2 {
					rp.stringRefs = append(rp.stringRefs, n)
				}
			})
		case 2: // sample
			walk(t, v, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) {
				if num == 1 {
					rp.sampleLocs = append(rp.sampleLocs, uints(t, typ, v, n)...)
				}
			})
		case 3: // mapping
			walk(t, v, func(num protowire.Number, typ protowire.Type, _ []byte, n uint64) {
				if num == 5 || num == 6 {
					rp.stringRefs = append(rp.stringRefs, n)
				}
			})
		case 4: // location
			walk(t, v, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) {
				switch num {
				case 1:
					rp.locationIDs[n] = true
				case 4:
					walk(t, v, func(num protowire.Number, _ protowire.Type, _ []byte, n uint64) {
						if num == 1 {
							rp.lineFuncRefs = append(rp.lineFuncRefs, n)
						}
					})
				}
			})
		case 5: // function
			walk(t, v, func(num protowire.Number, typ protowire.Type, _ []byte, n uint64) {
				switch num {
				case 1:
					rp.functionIDs[n] = true
				case 2, 3, 4:
					rp.stringRefs = append(rp.stringRefs, n)
				}
			})
		case 6:
			rp.stringTable = append(rp.stringTable, string(v))
		case 14:
			rp.stringRefs = append(rp.stringRefs, n)
		}
	})
	return rp
}

// walk visits every field of a message. Length-delimited fields get v, varints get n.
func walk(t *testing.T, b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64)) {
	t.Helper()
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, l, 0, "bad tag")
		b = b[l:]
		switch typ {
		case protowire.VarintType:
			n, l := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, l, 0)
			fn(num, typ, nil, n)
			b = b[l:]
		case protowire.BytesType:
			v, l := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, l, 0)
			fn(num, typ, v, 0)
			b = b[l:]
		default:
			l := protowire.ConsumeFieldValue(num, typ, b)
			require.GreaterOrEqual(t, l, 0, fmt.Sprintf("bad field %d", num))
			b = b[l:]
		}
	}
}

// uints reads a repeated uint64 field that may be packed or not.
func uints(t *testing.T, typ protowire.Type, v []byte, n uint64) []uint64 {
	if typ == protowire.VarintType {
		return []uint64{n}
	}
	var out []uint64
	for len(v) > 0 {
		x, l := protowire.ConsumeVarint(v)
		require.GreaterOrEqual(t, l, 0)
		out = append(out, x)
		v = v[l:]
	}
	return out
}
