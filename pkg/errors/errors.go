package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit   Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"

	CodeTenantNotFound        Code = "TENANT_NOT_FOUND"
	CodeProductNotFound       Code = "PRODUCT_NOT_FOUND"
	CodeItemNotFound          Code = "ITEM_NOT_FOUND"
	CodeEmptyCart             Code = "EMPTY_CART"
	CodeInsufficientInventory Code = "INSUFFICIENT_INVENTORY"
	CodeStoreUnavailable      Code = "STORE_UNAVAILABLE"
	CodeCatalogUnavailable    Code = "CATALOG_UNAVAILABLE"
	CodeTimeout               Code = "TIMEOUT"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		Retryable:     true,
		PublicMessage: "conflict detected",
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeTenantNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "site not found",
	},
	CodeProductNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "product not found",
	},
	CodeItemNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "item not found in cart",
	},
	CodeEmptyCart: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "cart is empty",
	},
	CodeInsufficientInventory: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "insufficient inventory",
		DetailsAllowed: true,
	},
	CodeStoreUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "cart store unavailable",
	},
	CodeCatalogUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "catalog unavailable",
	},
	CodeTimeout: {
		HTTPStatus:    http.StatusGatewayTimeout,
		Retryable:     true,
		PublicMessage: "request timed out",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// WrapInfra classifies a backend failure. Deadline and cancellation errors
// become CodeTimeout, everything else takes the supplied code.
func WrapInfra(code Code, err error, message string) *Error {
	if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, context.Canceled) {
		return Wrap(CodeTimeout, err, message)
	}
	return Wrap(code, err, message)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
