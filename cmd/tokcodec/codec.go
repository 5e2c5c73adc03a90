package main

import (
	"os"

	"github.com/fumin/tokcodec"
	"github.com/fumin/tokcodec/internal/config"
	"github.com/fumin/tokcodec/predict"
	"github.com/fumin/tokcodec/tokenize"
	"github.com/fumin/tokcodec/vocab"
	"github.com/pkg/errors"
)

func newTokenizer(cfg config.Config) (*tokenize.Tokenizer, error) {
	policy, err := config.NormalizeCase(cfg.Codec.Case)
	if err != nil {
		return nil, err
	}
	var opts []tokenize.Option
	if policy == config.CaseLowercase {
		opts = append(opts, tokenize.WithCase(tokenize.Lowercase))
	}
	if cfg.Codec.NFC {
		opts = append(opts, tokenize.WithNFC())
	}
	return tokenize.New(opts...), nil
}

func loadVocabulary(path string) (*vocab.Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open vocabulary")
	}
	defer f.Close()
	v, err := vocab.Load(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return v, nil
}

func parseBackend(raw string) (tokcodec.Backend, error) {
	name, err := config.NormalizeBackend(raw)
	if err != nil {
		return 0, err
	}
	return tokcodec.ParseBackend(name)
}

// newCodec builds a codec over v as configured.
func newCodec(cfg config.Config, v *vocab.Vocabulary) (*tokcodec.Codec, error) {
	backend, err := parseBackend(cfg.Codec.Backend)
	if err != nil {
		return nil, err
	}
	modeName, err := config.NormalizeVocabMode(cfg.Codec.VocabMode)
	if err != nil {
		return nil, err
	}
	mode, err := tokcodec.ParseVocabMode(modeName)
	if err != nil {
		return nil, err
	}
	model, err := config.NormalizeModel(cfg.Codec.Model)
	if err != nil {
		return nil, err
	}
	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}

	opts := []tokcodec.Option{
		tokcodec.WithBackend(backend),
		tokcodec.WithVocabularyMode(mode),
		tokcodec.WithTokenizer(tok),
	}
	var p predict.Predictor
	switch model {
	case config.ModelAdaptive:
		p = predict.NewMarkov(v, cfg.Predictor.Alpha, cfg.Predictor.Beta)
	case config.ModelCTW:
		if p, err = predict.NewCTW(v.NumSymbols(), cfg.Predictor.Depth); err != nil {
			return nil, err
		}
	}
	if p != nil {
		if cfg.Predictor.CacheSize > 0 {
			cache, err := predict.NewCache(p, cfg.Predictor.CacheSize)
			if err != nil {
				return nil, err
			}
			p = cache
		}
		opts = append(opts, tokcodec.WithPredictor(p), tokcodec.WithPrecision(uint(cfg.Codec.Precision)))
	}
	return tokcodec.New(v, opts...)
}
