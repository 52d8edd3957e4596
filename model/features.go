package model

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Feature holds the extracted acoustic summary for one track.
//
// Vector is a little-endian float32 blob; Fingerprint records the track
// fingerprint the vector was computed from, so a track whose file changed is
// detectable as stale without touching the blob.
type Feature struct {
	TrackID     int64   `gorm:"primaryKey" json:"trackId"`
	Vector      []byte  `gorm:"type:blob" json:"-"`
	Tempo       float64 `json:"tempo"` // beats per minute
	Fingerprint string  `json:"-"`
}

func (Feature) TableName() string { return "features" }

// FeatureVector decodes the stored blob back into float32 form.
func (f Feature) FeatureVector() ([]float32, error) {
	return DecodeVector(f.Vector)
}

// Dimension returns the vector length without decoding it.
func (f Feature) Dimension() int {
	return len(f.Vector) / 4
}

// EncodeVector serializes a feature vector for blob storage.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector parses a blob produced by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("feature blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
