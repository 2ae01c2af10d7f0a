package runtimevalue

// Core keys used by the ProxySharing dispatcher. Their names and env var
// names are part of the external contract: delegate workloads read the
// env vars directly, and API consumers read the API-visible ones from a
// serialized Proxy.
var (
	SeatId = NewKey[string](
		"SeatId", "SHINYPROXY_SEAT_ID", false, StringCodec,
	)
	DelegateProxy = NewKey[bool](
		"DelegateProxy", "SHINYPROXY_DELEGATE_PROXYS", false, BoolCodec,
	)
	TargetId = NewKey[string](
		"TargetId", "SHINYPROXY_TARGET_ID", true, StringCodec,
	)
	PublicPath = NewKey[string](
		"PublicPath", "SHINYPROXY_PUBLIC_PATH", true, StringCodec,
	)
)

// NewCoreRegistry returns a Registry with the four core keys already
// registered. Callers add any spec-defined custom keys on top of it
// during their own startup sequence.
func NewCoreRegistry() *Registry {
	r := NewRegistry()
	r.Register(SeatId)
	r.Register(DelegateProxy)
	r.Register(TargetId)
	r.Register(PublicPath)
	return r
}
