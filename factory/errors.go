package factory

import "errors"

var errNilConfig = errors.New("config cannot be nil")
