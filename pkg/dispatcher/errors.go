package dispatcher

import "errors"

// ErrUnsupported is returned by operations this dispatcher never
// implements (pause/resume of a shared proxy). It is fatal for the
// requested operation only, never for the dispatcher itself.
var ErrUnsupported = errors.New("dispatcher: operation unsupported")

// ErrProxyFailedToStart is returned when startProxy could not obtain a
// seat within its attempt budget, or when the delegate resolved by a
// claimed seat could not be found. Any seat held at the point of
// failure is released before this error is returned.
var ErrProxyFailedToStart = errors.New("dispatcher: proxy failed to start")
