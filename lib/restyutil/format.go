package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

func renderHeaders(out *strings.Builder, headers http.Header) {
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(out, "%s: %s\n", key, value)
		}
	}
}

func renderRequestBody(out *strings.Builder, req *http.Request) {
	if req == nil || req.GetBody == nil {
		return
	}
	reader, err := req.GetBody()
	if err != nil || reader == nil {
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		fmt.Fprintf(out, "failed to read request body: %s\n", err)
		return
	}
	out.Write(body)
	out.WriteString("\n")
}

// formatExchange renders a completed request/response pair in a rough
// wire style: request line, headers and body, then the same for the
// response.
func formatExchange(res *resty.Response) string {
	var out strings.Builder

	fmt.Fprintf(&out, "%s %s\n", res.Request.Method, res.Request.URL)
	renderHeaders(&out, res.Request.RawRequest.Header)
	out.WriteString("\n")
	renderRequestBody(&out, res.Request.RawRequest)

	fmt.Fprintf(&out, "\n%s %s\n", res.Proto(), res.Status())
	renderHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())

	return out.String()
}
