package realtime

import "errors"

// ErrMissingToken is reported when no access credential is stored. It is
// not retried; the owner must call Connect again after a fresh login.
var ErrMissingToken = errors.New("no access token: log in to receive notifications")
