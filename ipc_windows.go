package web3

import (
	"context"

	"github.com/pkg/errors"
)

// Named pipes aren't supported yet. Always fails with "ErrUnsupported".
func DialIpc(ctx context.Context, path string, opts ...Option) (Trans, error) {
	return dialIpcTrans(ctx, path, newDialConf(opts))
}

func dialIpcTrans(context.Context, string, *dialConf) (Trans, error) {
	return nil, errors.Wrap(ErrUnsupported, "IPC transport is not available on Windows")
}
