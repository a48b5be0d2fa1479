package protocol

import "strings"

// Operation is an HCX gateway API operation
type Operation struct {
	path string
}

// Pre-authorization operations
var (
	OpPreauthSubmit   = Operation{"/preauth/submit"}
	OpPreauthOnSubmit = Operation{"/preauth/on_submit"}
)

// Path returns the operation path under the given API version segment,
// e.g. "/v0.7/preauth/submit". An empty version yields the bare path.
func (o Operation) Path(apiVersion string) string {
	v := strings.Trim(apiVersion, "/")
	if v == "" {
		return o.path
	}
	return "/" + v + o.path
}
