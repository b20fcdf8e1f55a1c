package geometry

import (
	"bytes"
	"encoding/binary"

	"github.com/go-spatial/geom/encoding/wkb"
)

// EncodeWKB encodes g as Well-Known Binary. The SRID is never embedded —
// it is carried out-of-band by the owning layer (§3, §4.A).
func EncodeWKB(g Geometry) ([]byte, error) {
	var buf bytes.Buffer
	if err := wkb.Encode(&buf, binary.LittleEndian, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWKB decodes Well-Known Binary into the internal geometry value.
func DecodeWKB(b []byte) (Geometry, error) {
	g, err := wkb.DecodeBytes(b)
	if err != nil {
		return nil, ErrMalformedGML{Reason: err.Error()}
	}
	return g, nil
}
