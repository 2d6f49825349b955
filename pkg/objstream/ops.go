package objstream

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// ReadFile reads the whole object at path.
func (c *Client) ReadFile(ctx context.Context, path string, opts ...OpenOption) ([]byte, error) {
	f, err := c.Open(ctx, path, "r", opts...)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadAll()
}

// WriteFile replaces the object at path with data.
func (c *Client) WriteFile(ctx context.Context, path string, data []byte, opts ...OpenOption) error {
	f, err := c.Open(ctx, path, "w", opts...)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Copy streams the object at src into dst, possibly across backends. The
// read and write sides run concurrently through a pipe, so the download
// prefetch and the upload part flushes overlap.
func (c *Client) Copy(ctx context.Context, dst, src string, opts ...OpenOption) error {
	pr, pw := io.Pipe()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sf, err := c.Open(ctx, src, "r", opts...)
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		defer sf.Close()
		if _, err := io.Copy(pw, sf); err != nil {
			pw.CloseWithError(err)
			return err
		}
		return pw.Close()
	})

	g.Go(func() error {
		df, err := c.Open(ctx, dst, "w", opts...)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		if _, err := io.Copy(df, pr); err != nil {
			df.Close()
			return err
		}
		return df.Close()
	})

	return g.Wait()
}
