package synctransport

import "fmt"

// TransportErrorKind enumerates the seven classifications of spec.md
// §4.2/§6/§7. Every TransportError carries exactly one.
type TransportErrorKind int

const (
	Unauthenticated TransportErrorKind = iota
	PermissionDenied
	Timeout
	RateLimitExceeded
	InternalServerError
	UnreachableService
	InvalidResponse
)

func (k TransportErrorKind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case PermissionDenied:
		return "permissionDenied"
	case Timeout:
		return "timeout"
	case RateLimitExceeded:
		return "rateLimitExceeded"
	case InternalServerError:
		return "internalServerError"
	case UnreachableService:
		return "unreachableService"
	case InvalidResponse:
		return "invalidResponse"
	default:
		return "unknown"
	}
}

// TransportError is the fatal, non-retried error surfaced by any
// Transport method (spec.md §4.2). Detail carries the server-reported
// message for PermissionDenied, or the raw body for InvalidResponse.
type TransportError struct {
	Kind   TransportErrorKind
	Detail string
}

func (e *TransportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("synctransport: %s", e.Kind)
	}
	return fmt.Sprintf("synctransport: %s: %s", e.Kind, e.Detail)
}

// classifyStatus implements the status-code mapping of spec.md §6:
// 401→Unauthenticated, 403→PermissionDenied(body), 408/504→Timeout,
// 429→RateLimitExceeded, 500+→InternalServerError, else→
// InvalidResponse(raw). Only called for status codes outside 2xx.
func classifyStatus(statusCode int, body []byte) *TransportError {
	switch statusCode {
	case 401:
		return &TransportError{Kind: Unauthenticated}
	case 403:
		return &TransportError{Kind: PermissionDenied, Detail: string(body)}
	case 408, 504:
		return &TransportError{Kind: Timeout}
	case 429:
		return &TransportError{Kind: RateLimitExceeded}
	}
	if statusCode >= 500 {
		return &TransportError{Kind: InternalServerError, Detail: string(body)}
	}
	return &TransportError{Kind: InvalidResponse, Detail: string(body)}
}
