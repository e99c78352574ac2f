package mcsession

import "errors"

var (
	ErrMalformed    = errors.New("mcsession: malformed token")
	ErrBadSignature = errors.New("mcsession: signature verification failed")
	ErrExpired      = errors.New("mcsession: token expired")
	ErrReplayed     = errors.New("mcsession: nonce already consumed")
)
