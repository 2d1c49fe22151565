package domain

import "errors"

// ErrInvalidArgument indica erro de programação (policy ou chave inválida).
var ErrInvalidArgument = errors.New("invalid argument")

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
