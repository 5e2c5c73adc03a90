package config

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	BackendRange  = "range"
	BackendPrefix = "prefix"

	ModelStatic   = "static"
	ModelAdaptive = "adaptive"
	ModelCTW      = "ctw"

	VocabModeAbsent     = "absent"
	VocabModeEmbedded   = "embedded"
	VocabModeCompressed = "compressed"

	CasePreserve  = "preserve"
	CaseLowercase = "lowercase"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	switch backend {
	case "", BackendRange, "arithmetic":
		return BackendRange, nil
	case BackendPrefix, "huffman":
		return BackendPrefix, nil
	default:
		return "", errors.Errorf("invalid backend %q (expected %s|%s)", raw, BackendRange, BackendPrefix)
	}
}

func NormalizeModel(raw string) (string, error) {
	model := strings.ToLower(strings.TrimSpace(raw))
	switch model {
	case "", ModelStatic:
		return ModelStatic, nil
	case ModelAdaptive, "markov":
		return ModelAdaptive, nil
	case ModelCTW, "context-tree":
		return ModelCTW, nil
	default:
		return "", errors.Errorf("invalid model %q (expected %s|%s|%s)", raw, ModelStatic, ModelAdaptive, ModelCTW)
	}
}

func NormalizeVocabMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "", VocabModeAbsent, "none":
		return VocabModeAbsent, nil
	case VocabModeEmbedded, "raw":
		return VocabModeEmbedded, nil
	case VocabModeCompressed, "zstd":
		return VocabModeCompressed, nil
	default:
		return "", errors.Errorf(
			"invalid vocabulary mode %q (expected %s|%s|%s)",
			raw,
			VocabModeAbsent,
			VocabModeEmbedded,
			VocabModeCompressed,
		)
	}
}

func NormalizeCase(raw string) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(raw))
	switch policy {
	case "", CasePreserve:
		return CasePreserve, nil
	case CaseLowercase, "lower":
		return CaseLowercase, nil
	default:
		return "", errors.Errorf("invalid case policy %q (expected %s|%s)", raw, CasePreserve, CaseLowercase)
	}
}
