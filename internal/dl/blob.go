package dl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// marshalParams encodes a parameter vector as little-endian IEEE 754
// doubles. The format carries no header; the architecture implied by the
// phenotype determines the expected length on restore.
func marshalParams(params []float64) []byte {
	buf := make([]byte, 8*len(params))
	for i, v := range params {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}

	return buf
}

func unmarshalParams(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("dl: malformed parameter blob of %d bytes", len(blob))
	}

	params := make([]float64, len(blob)/8)
	for i := range params {
		params[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}

	return params, nil
}
