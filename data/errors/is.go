package errors

import (
	stderrors "errors"

	"github.com/mwantia/asyncvfs/data"
)

func IsNotExist(err error) bool {
	return stderrors.Is(err, data.ErrNotExist)
}

func IsUnsupported(err error) bool {
	return stderrors.Is(err, data.ErrUnsupported)
}

func IsCancelled(err error) bool {
	return stderrors.Is(err, data.ErrCancelled)
}
