package objstore

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v3"
)

// Compressing wraps a Backend so every Put is lz4-framed and every Get is
// transparently decompressed.
type Compressing struct {
	Backend
}

func NewCompressing(b Backend) *Compressing { return &Compressing{Backend: b} }

func (c *Compressing) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	pr, pw := io.Pipe()
	zw := lz4.NewWriter(pw)

	go func() {
		_, err := io.Copy(zw, r)
		closeErr := zw.Close()
		if err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	return c.Backend.Put(ctx, key, pr, -1)
}

func (c *Compressing) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, err := c.Backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &decompressingReadCloser{zr: lz4.NewReader(raw), underlying: raw}, nil
}

type decompressingReadCloser struct {
	zr         io.Reader
	underlying io.Closer
}

func (d *decompressingReadCloser) Read(p []byte) (int, error) { return d.zr.Read(p) }
func (d *decompressingReadCloser) Close() error                { return d.underlying.Close() }
