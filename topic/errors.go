package topic

import "errors"

// ErrInvalidPattern is returned when a subscription template is not a
// syntactically legal topic filter. Use errors.Is() to check for it.
//
// Pattern errors are fatal at registration time - a subscriber carrying
// an invalid template never becomes active.
var ErrInvalidPattern = errors.New("topic: invalid pattern")
