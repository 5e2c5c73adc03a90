package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fumin/tokcodec"
	"github.com/fumin/tokcodec/vocab"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [files...]",
		Short: "Train a vocabulary from text files, or stdin without files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := activeCfg
			tok, err := newTokenizer(cfg)
			if err != nil {
				return err
			}

			texts, err := readTexts(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var opts []vocab.Option
			if cfg.Vocab.MaxSize > 0 {
				opts = append(opts, vocab.WithMaxSize(cfg.Vocab.MaxSize))
			}
			if cfg.Vocab.MinWeight > 0 {
				opts = append(opts, vocab.WithMinWeight(uint64(cfg.Vocab.MinWeight)))
			}
			if cfg.Vocab.EscapeWeight > 0 {
				opts = append(opts, vocab.WithEscapeWeight(uint64(cfg.Vocab.EscapeWeight)))
			}
			v, err := tokcodec.TrainText(texts, tok, opts...)
			if err != nil {
				return err
			}

			if dir := filepath.Dir(cfg.Vocab.Path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrap(err, "")
				}
			}
			f, err := os.Create(cfg.Vocab.Path)
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer f.Close()
			if err := v.Save(f); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrap(err, "")
			}

			slog.Info("trained vocabulary",
				"path", cfg.Vocab.Path,
				"texts", len(texts),
				"tokens", v.Size(),
				"entropy_bits", v.Entropy(),
			)
			return nil
		},
	}
	return cmd
}

func readTexts(stdin io.Reader, names []string) ([]string, error) {
	if len(names) == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return []string{string(b)}, nil
	}
	texts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		texts = append(texts, string(b))
	}
	return texts, nil
}
