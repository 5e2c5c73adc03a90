package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fumin/tokcodec"
	"github.com/fumin/tokcodec/container"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// artifactExt is appended to the names of compressed files.
const artifactExt = ".tok"

func newCompressCmd() *cobra.Command {
	var output string
	var standalone bool

	cmd := &cobra.Command{
		Use:   "compress [files...]",
		Short: "Compress text files, or stdin to stdout without files",
		Long: "Compress text with a trained vocabulary.\n" +
			"A single input is written to --output or stdout, several inputs are written next to themselves with a " + artifactExt + " suffix.\n" +
			"With --standalone, each text is compressed with a vocabulary trained on itself and embedded in the artifact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := activeCfg
			if len(args) > 1 && output != "" {
				return errors.New("--output needs a single input")
			}

			var c *tokcodec.Codec
			if !standalone {
				v, err := loadVocabulary(cfg.Vocab.Path)
				if err != nil {
					return err
				}
				if c, err = newCodec(cfg, v); err != nil {
					return err
				}
			}
			encode := func(text string) (*container.Artifact, error) {
				if standalone {
					return compressStandalone(text)
				}
				return c.EncodeText(text)
			}

			if len(args) > 1 && !standalone {
				return compressBatch(cmd.Context(), c, args, cfg.Batch.Workers)
			}
			if len(args) > 1 {
				for _, name := range args {
					if err := compressFile(encode, name, name+artifactExt); err != nil {
						return err
					}
				}
				return nil
			}

			var text []byte
			var err error
			if len(args) == 1 {
				text, err = os.ReadFile(args[0])
			} else {
				text, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return errors.Wrap(err, "")
			}
			a, err := encode(string(text))
			if err != nil {
				return err
			}
			return writeArtifact(cmd.OutOrStdout(), output, a, int64(len(text)))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout if empty")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "Train on each input and embed the vocabulary")
	return cmd
}

func compressStandalone(text string) (*container.Artifact, error) {
	cfg := activeCfg
	backend, err := parseBackend(cfg.Codec.Backend)
	if err != nil {
		return nil, err
	}
	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}
	return tokcodec.CompressStandalone(text, tokcodec.WithBackend(backend), tokcodec.WithTokenizer(tok))
}

func compressFile(encode func(string) (*container.Artifact, error), in, out string) error {
	text, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "")
	}
	a, err := encode(string(text))
	if err != nil {
		return errors.Wrap(err, in)
	}
	return writeArtifact(nil, out, a, int64(len(text)))
}

func compressBatch(ctx context.Context, c *tokcodec.Codec, names []string, workers int) error {
	texts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(name)
		if err != nil {
			return errors.Wrap(err, "")
		}
		texts = append(texts, string(b))
	}
	artifacts, err := c.EncodeBatch(ctx, texts, workers)
	if err != nil {
		return err
	}
	for i, a := range artifacts {
		if err := writeArtifact(nil, names[i]+artifactExt, a, int64(len(texts[i]))); err != nil {
			return err
		}
	}
	return nil
}

// writeArtifact writes a to the file name, or to w if name is empty.
func writeArtifact(w io.Writer, name string, a *container.Artifact, originalBytes int64) error {
	var n int64
	var err error
	if name == "" {
		if n, err = a.WriteTo(w); err != nil {
			return err
		}
	} else {
		b, err := a.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(name, b, 0o644); err != nil {
			return errors.Wrap(err, "")
		}
		n = int64(len(b))
	}
	slog.Debug("compressed",
		"output", name,
		"format", a.Format.String(),
		"original_bytes", originalBytes,
		"compressed_bytes", n,
		"payload_bits", a.BitLen,
	)
	return nil
}
