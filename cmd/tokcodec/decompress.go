package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fumin/tokcodec"
	"github.com/fumin/tokcodec/container"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDecompressCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "decompress [files...]",
		Short: "Decompress artifacts, or stdin to stdout without files",
		Long: "Decompress artifacts with a trained vocabulary.\n" +
			"Artifacts that embed their vocabulary decode without one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := activeCfg
			if len(args) > 1 && output != "" {
				return errors.New("--output needs a single input")
			}

			// The vocabulary file is optional for artifacts that embed theirs.
			var c *tokcodec.Codec
			v, err := loadVocabulary(cfg.Vocab.Path)
			switch {
			case err == nil:
				if c, err = newCodec(cfg, v); err != nil {
					return err
				}
			case errors.Is(err, os.ErrNotExist):
				slog.Debug("no vocabulary", "path", cfg.Vocab.Path)
			default:
				return err
			}

			if len(args) > 1 {
				return decompressBatch(cmd.Context(), c, args, cfg.Batch.Workers)
			}

			var a *container.Artifact
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "")
				}
				defer f.Close()
				a, err = container.ReadFrom(f)
				if err != nil {
					return errors.Wrap(err, args[0])
				}
			} else {
				if a, err = container.ReadFrom(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			text, err := decodeArtifact(c, a)
			if err != nil {
				return err
			}
			return writeText(cmd.OutOrStdout(), output, text)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout if empty")
	return cmd
}

func decodeArtifact(c *tokcodec.Codec, a *container.Artifact) (string, error) {
	if c != nil {
		return c.DecodeText(a)
	}
	if a.Mode == container.VocabAbsent {
		return "", errors.Errorf("artifact needs the vocabulary %s", activeCfg.Vocab.Path)
	}
	return tokcodec.DecompressStandalone(a)
}

func decompressBatch(ctx context.Context, c *tokcodec.Codec, names []string, workers int) error {
	artifacts := make([]*container.Artifact, 0, len(names))
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			return errors.Wrap(err, "")
		}
		a, err := container.ReadFrom(f)
		f.Close()
		if err != nil {
			return errors.Wrap(err, name)
		}
		artifacts = append(artifacts, a)
	}

	var texts []string
	if c != nil {
		var err error
		if texts, err = c.DecodeBatch(ctx, artifacts, workers); err != nil {
			return err
		}
	} else {
		for i, a := range artifacts {
			text, err := decodeArtifact(nil, a)
			if err != nil {
				return errors.Wrap(err, names[i])
			}
			texts = append(texts, text)
		}
	}

	for i, text := range texts {
		if err := writeText(nil, decompressedName(names[i]), text); err != nil {
			return err
		}
	}
	return nil
}

func decompressedName(name string) string {
	if strings.HasSuffix(name, artifactExt) && len(name) > len(artifactExt) {
		return strings.TrimSuffix(name, artifactExt)
	}
	return name + ".txt"
}

// writeText writes text to the file name, or to w if name is empty.
func writeText(w io.Writer, name, text string) error {
	if name == "" {
		if _, err := io.WriteString(w, text); err != nil {
			return errors.Wrap(err, "")
		}
		return nil
	}
	if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "")
	}
	slog.Debug("decompressed", "output", name, "bytes", len(text))
	return nil
}
