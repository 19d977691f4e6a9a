package eventstream

import "errors"

// ErrNilCascadeEvent indicates a nil cascade event payload was provided to a publisher.
var ErrNilCascadeEvent = errors.New("nil cascade event")
