package botdetect

import "errors"

var ErrInvalidIPAddress = errors.New("invalid IP address format")
