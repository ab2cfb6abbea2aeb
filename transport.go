package websocket

import (
	"context"
	"io"

	"github.com/gobwas/pool/pbytes"
	"golang.org/x/xerrors"
)

// defaultReadSize is the size of the buffer each transport read uses.
const defaultReadSize = 32 << 10

// Pump reads r until it fails and notifies n of each chunk read.
// The final notification yields the error that stopped reading,
// io.EOF when r was exhausted.
//
// Pump blocks; run it in its own goroutine. It returns when r fails
// or ctx is done, in which case r must be unblocked by the caller,
// for example by closing it.
func Pump(ctx context.Context, r io.Reader, n Notifier) error {
	b := pbytes.GetLen(defaultReadSize)
	defer pbytes.Put(b)

	for {
		k, err := r.Read(b)
		if k > 0 {
			chunk := make([]byte, k)
			copy(chunk, b[:k])
			n.Readable(func() ([]byte, error) {
				return chunk, nil
			})
		}

		if ctx.Err() != nil {
			n.Readable(failedRead(ctx.Err()))
			return ctx.Err()
		}
		if err != nil {
			n.Readable(failedRead(err))
			if xerrors.Is(err, io.EOF) {
				return nil
			}
			return xerrors.Errorf("failed to read from transport: %w", err)
		}
	}
}

func failedRead(err error) ReadFunc {
	return func() ([]byte, error) {
		return nil, err
	}
}
