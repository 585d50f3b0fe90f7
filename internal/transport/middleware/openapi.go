package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/pkg/logger"
)

// RequestValidator checks request bodies and parameters against the OpenAPI document.
type RequestValidator struct {
	doc     *openapi3.T
	options *openapi3filter.Options
}

func NewRequestValidator(ctx context.Context, spec []byte) (*RequestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	return &RequestValidator{
		doc: doc,
		options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}, nil
}

// Handler must be attached inline with chi's With so the route pattern is
// known. Routes missing from the document pass through.
func (v *RequestValidator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			next.ServeHTTP(w, r)
			return
		}

		pattern := rctx.RoutePattern()
		pathItem := v.doc.Paths.Find(pattern)
		if pathItem == nil {
			next.ServeHTTP(w, r)
			return
		}
		operation := pathItem.GetOperation(r.Method)
		if operation == nil {
			next.ServeHTTP(w, r)
			return
		}

		params := make(map[string]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			params[key] = rctx.URLParams.Values[i]
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route: &routers.Route{
				Spec:      v.doc,
				Path:      pattern,
				PathItem:  pathItem,
				Method:    r.Method,
				Operation: operation,
			},
			Options: v.options,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			logger.From(r.Context()).Warn("request failed schema validation", "error", err, "route", pattern)
			writeAppError(w, internal.NewValidationError(validationMessage(err), internal.ErrCodeValidationFailed))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func validationMessage(err error) string {
	switch e := err.(type) {
	case *openapi3filter.RequestError:
		if e.Parameter != nil {
			return fmt.Sprintf("invalid parameter %s", e.Parameter.Name)
		}
		if e.RequestBody != nil {
			return "request body does not match schema: " + e.Reason
		}
		return e.Reason
	case *openapi3filter.SecurityRequirementsError:
		return "missing credentials"
	}
	return "invalid request"
}
