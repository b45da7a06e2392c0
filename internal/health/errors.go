package health

import "errors"

var errUnavailable = errors.New("dependency not configured")
