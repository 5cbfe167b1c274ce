package client

import (
	"fmt"
	"net/http"
	"strings"
)

// Method is one of the HTTP verbs a Client can dispatch.
type Method int

const (
	MethodGet Method = iota + 1
	MethodOptions
	MethodHead
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
)

// Methods lists every supported verb.
var Methods = []Method{MethodGet, MethodOptions, MethodHead, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod maps a verb name, in any case, to a Method. An empty
// name is an ErrInvalidArgument, an unknown one ErrUnsupportedMethod.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return 0, fmt.Errorf("%w: method must not be empty", ErrInvalidArgument)
	case "get":
		return MethodGet, nil
	case "options":
		return MethodOptions, nil
	case "head":
		return MethodHead, nil
	case "post":
		return MethodPost, nil
	case "put":
		return MethodPut, nil
	case "patch":
		return MethodPatch, nil
	case "delete":
		return MethodDelete, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMethod, name)
	}
}

// String returns the verb as sent on the wire.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodOptions:
		return http.MethodOptions
	case MethodHead:
		return http.MethodHead
	case MethodPost:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	case MethodPatch:
		return http.MethodPatch
	case MethodDelete:
		return http.MethodDelete
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// UnmarshalText lets a Method be decoded from configuration.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Method) valid() bool {
	return m >= MethodGet && m <= MethodDelete
}
