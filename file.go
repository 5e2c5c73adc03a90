package tokcodec

import (
	"io"
	"os"

	"github.com/fumin/tokcodec/container"
	"github.com/pkg/errors"
)

// Compress encodes the text file name and writes the artifact to w.
func (c *Codec) Compress(w io.Writer, name string) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	a, err := c.EncodeText(string(b))
	if err != nil {
		return errors.Wrap(err, name)
	}
	if _, err := a.WriteTo(w); err != nil {
		return err
	}
	return nil
}

// Decompress reads an artifact from r and writes the decoded text to w.
func (c *Codec) Decompress(w io.Writer, r io.Reader) error {
	a, err := container.ReadFrom(r)
	if err != nil {
		return err
	}
	text, err := c.DecodeText(a)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
