package frame

import (
	"github.com/pkg/errors"
)

var (
	ErrSymNotFound   = errors.New("symbol not found")
	ErrSymTableEmpty = errors.New("symtable is empty")
	ErrFuncNotFound  = errors.New("function not found for id")
)
