package tokcodec

import (
	"github.com/fumin/tokcodec/container"
	"github.com/klauspost/compress"
)

// Stats compares an artifact with the text it was made from.
type Stats struct {
	OriginalBits   int64   `json:"original_bits"`
	CompressedBits int64   `json:"compressed_bits"`
	PayloadBits    int64   `json:"payload_bits"`
	OverheadBits   int64   `json:"overhead_bits"`
	Ratio          float64 `json:"ratio"`
	SavingsPercent float64 `json:"savings_percent"`

	// EntropyBits is the order-0 byte entropy of the original, the size a byte level entropy coder would approach.
	EntropyBits int64 `json:"entropy_bits"`
}

// ComputeStats measures a against original.
// CompressedBits counts the whole artifact, framing and embedded vocabulary included, and OverheadBits is everything but the payload.
// Ratio is OriginalBits/CompressedBits.
func ComputeStats(original string, a *container.Artifact) (Stats, error) {
	size, err := a.Size()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		OriginalBits:   8 * int64(len(original)),
		CompressedBits: 8 * int64(size),
		PayloadBits:    a.BitLen,
		EntropyBits:    int64(compress.ShannonEntropyBits([]byte(original))),
	}
	s.OverheadBits = s.CompressedBits - s.PayloadBits
	if s.CompressedBits > 0 {
		s.Ratio = float64(s.OriginalBits) / float64(s.CompressedBits)
	}
	if s.OriginalBits > 0 {
		s.SavingsPercent = 100 * (1 - float64(s.CompressedBits)/float64(s.OriginalBits))
	}
	return s, nil
}
