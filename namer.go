package telemetry

import "strings"

// SpanNamer defines how operation names are transformed into span names.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged.
type DefaultNamer struct{}

// Name returns the operation name as is.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// PrefixNamer prepends a service prefix: "checkout: GET /cart".
type PrefixNamer struct {
	Prefix string
}

// Name returns the prefixed operation name.
func (n PrefixNamer) Name(operation string) string {
	if n.Prefix == "" {
		return operation
	}

	return n.Prefix + ": " + operation
}

// NameHTTP returns the span name for an HTTP request: "METHOD /route".
// Example: "GET /users/{id}"
func NameHTTP(method, route string) string {
	return method + " " + route
}

// NameRPC returns the span name for an RPC call: "Service/Method".
// A full gRPC method such as "/pkg.Greeter/SayHello" is trimmed of its leading slash.
func NameRPC(service, method string) string {
	if service == "" {
		return strings.TrimPrefix(method, "/")
	}

	return service + "/" + method
}

// NameMessaging returns the span name for a messaging operation: "verb destination".
// Example: "process orders"
func NameMessaging(verb, destination string) string {
	return verb + " " + destination
}
