// Package proxyspec models ProxySpec: the template describing a class
// of proxies, loaded at startup and immutable at runtime.
package proxyspec

// SharingExtension is the sharing-pool configuration attached to a
// spec. A nil MinimumSeatsAvailable means sharing is disabled for the
// spec.
type SharingExtension struct {
	MinimumSeatsAvailable *int
}

// Spec is a ProxySpec. ContainerSpec is left opaque (interface{}) here:
// its shape is owned by the container-runtime adapters, out of this
// module's scope.
type Spec struct {
	ID            string
	ContainerSpec interface{}
	Sharing       *SharingExtension
}

// SupportsSharing reports whether seats are pooled for this spec. The
// Dispatcher treats the result as opaque — only the scaler that grows
// and shrinks the delegate pool interprets it further.
func SupportsSharing(spec *Spec) bool {
	return spec.Sharing != nil && spec.Sharing.MinimumSeatsAvailable != nil
}
