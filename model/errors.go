package model

import "errors"

var (
	ErrBadOptions    = errors.New("model: invalid options")
	ErrStateMismatch = errors.New("model: state does not match corpus")
)
