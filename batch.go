package tokcodec

import (
	"context"

	"github.com/fumin/tokcodec/container"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// EncodeBatch encodes texts in parallel sessions, at most workers at a time.
// The artifacts are in the order of texts.
// Cancelling ctx stops sessions that have not started yet.
func (c *Codec) EncodeBatch(ctx context.Context, texts []string, workers int) ([]*container.Artifact, error) {
	artifacts := make([]*container.Artifact, len(texts))
	p := newPool(ctx, workers)
	for i, text := range texts {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := c.EncodeText(text)
			if err != nil {
				return errors.Wrapf(err, "text %d", i)
			}
			artifacts[i] = a
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// DecodeBatch decodes artifacts in parallel sessions, at most workers at a time.
func (c *Codec) DecodeBatch(ctx context.Context, artifacts []*container.Artifact, workers int) ([]string, error) {
	texts := make([]string, len(artifacts))
	p := newPool(ctx, workers)
	for i, a := range artifacts {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := c.DecodeText(a)
			if err != nil {
				return errors.Wrapf(err, "artifact %d", i)
			}
			texts[i] = text
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func newPool(ctx context.Context, workers int) *pool.ContextPool {
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if workers > 0 {
		p = p.WithMaxGoroutines(workers)
	}
	return p
}
