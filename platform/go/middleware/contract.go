package middleware

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// ContractValidator builds request-validation middleware from an embedded
// OpenAPI document. Requests that do not match the contract are rejected
// before they reach a handler, which keeps handler code free of shape checks.
func ContractValidator(spec []byte) (func(http.Handler) http.Handler, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}

	return oapimiddleware.OapiRequestValidatorWithOptions(doc, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			// The signup surface is public; there is nothing to authenticate.
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}), nil
}
