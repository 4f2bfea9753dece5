package notify

import "errors"

var ErrPublishTimeout = errors.New("publish timed out")
