package telemetry

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// Session cookies and login forms carry account credentials. Spans
// are exported off the box, so those values never go into attributes.
var redactedHeaders = map[string]bool{
	"Cookie":        true,
	"Set-Cookie":    true,
	"Authorization": true,
}

var redactedFormFields = map[string]bool{
	"password": true,
	"__csrf":   true,
}

// InstrumentResty attaches span middleware to a resty client: one
// client span per request carrying method, url, status, headers and
// bodies, with credential material redacted.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(startSpan(tracer))
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func startSpan(tracer trace.Tracer) resty.RequestMiddleware {
	return func(cli *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), req.Method)
		req.SetContext(ctx)
		return nil
	}
}

func headerAttrs(out *[]attribute.KeyValue, direction string, headers http.Header) {
	for header, values := range headers {
		if redactedHeaders[http.CanonicalHeaderKey(header)] {
			values = []string{"<redacted>"}
		}
		for i, v := range values {
			key := fmt.Sprintf("%s/header: %s", direction, header)
			if len(values) > 1 {
				key = fmt.Sprintf("%s (%d)", key, i)
			}
			*out = append(*out, attribute.String(key, v))
		}
	}
}

// sanitizeForm hides credential fields in a form-encoded body.
func sanitizeForm(body, contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return body
	}
	form, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	changed := false
	for field := range form {
		if redactedFormFields[strings.ToLower(field)] {
			form[field] = []string{"<redacted>"}
			changed = true
		}
	}
	if !changed {
		return body
	}
	return form.Encode()
}

func requestBodyAttr(span trace.Span, req *http.Request) {
	if req == nil || req.GetBody == nil {
		return
	}
	reader, err := req.GetBody()
	if err != nil {
		span.SetAttributes(attribute.String(
			"request/body",
			fmt.Sprintf("failed to get request body: %s", err),
		))
		return
	}
	if reader == nil {
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		span.SetAttributes(attribute.String(
			"request/body",
			fmt.Sprintf("failed to read request body: %s", err),
		))
		return
	}
	span.SetAttributes(attribute.String(
		"request/body",
		sanitizeForm(string(body), req.Header.Get("Content-Type")),
	))
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	// request attributes are set here because RawRequest is still nil
	// in the before-request hook
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	var attrs []attribute.KeyValue
	headerAttrs(&attrs, "request", res.Request.Header)
	headerAttrs(&attrs, "response", res.Header())
	span.SetAttributes(attrs...)

	requestBodyAttr(span, res.Request.RawRequest)
	span.SetAttributes(attribute.String("response/body", res.String()))

	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	defer span.SetStatus(codes.Error, err.Error())
	defer span.RecordError(err)

	span.SetName(fmt.Sprintf("http %s", req.Method))
	var attrs []attribute.KeyValue
	headerAttrs(&attrs, "request", req.Header)
	span.SetAttributes(attrs...)

	if req.RawRequest == nil {
		return
	}
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	requestBodyAttr(span, req.RawRequest)
}
