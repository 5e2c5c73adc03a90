package main

import (
	"encoding/json"

	"github.com/fumin/tokcodec"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type statsReport struct {
	Name     string            `json:"name,omitempty"`
	Format   string            `json:"format"`
	Stats    tokcodec.Stats    `json:"stats"`
	Analysis tokcodec.Analysis `json:"analysis"`
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [files...]",
		Short: "Report compression statistics as JSON, for stdin without files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := activeCfg
			v, err := loadVocabulary(cfg.Vocab.Path)
			if err != nil {
				return err
			}
			c, err := newCodec(cfg, v)
			if err != nil {
				return err
			}
			texts, err := readTexts(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for i, text := range texts {
				a, err := c.EncodeText(text)
				if err != nil {
					return err
				}
				r := statsReport{Format: a.Format.String()}
				if i < len(args) {
					r.Name = args[i]
				}
				if r.Stats, err = tokcodec.ComputeStats(text, a); err != nil {
					return err
				}
				if r.Analysis, err = c.Analyze(text); err != nil {
					return err
				}
				if err := enc.Encode(r); err != nil {
					return errors.Wrap(err, "")
				}
			}
			return nil
		},
	}
	return cmd
}
