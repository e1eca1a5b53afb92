package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"lunaboxd/lib/htmlutil"
)

// SuccessResult is the literal the site uses in a JSON "result" field
// to report success. A bare boolean true means the same thing.
const SuccessResult = "success"

// Classification is the site's verdict about a response, merged from
// the optional JSON result payload and the error marker embedded in
// HTML error pages.
type Classification struct {
	// Result is the normalized value of the "result" key, empty when
	// the body carried no verdict object. A JSON true is normalized to
	// SuccessResult, a JSON false to "failure".
	Result    string
	HasResult bool
	// Messages is the site's human-readable feedback, verbatim.
	Messages []string
	// ErrorCode is the site's error code, e.g. "not_found" or
	// "forbidden". The /errors/<code> marker on HTML error pages
	// overrides the JSON "error" field when both are present.
	ErrorCode string
}

func (c Classification) hasVerdict() bool {
	return c.HasResult || len(c.Messages) > 0 || c.ErrorCode != ""
}

// Classify merges the transport status, the optional JSON verdict and
// the HTML error marker into a Classification, returning nil only when
// every signal agrees the request worked: the transport status is a
// success, the result field (if present) is the success sentinel, and
// no error code was reported. A site-reported error code fails the
// response even on a 200.
func Classify(statusCode int, body []byte) (Classification, error) {
	class := parseVerdict(body)
	if marker := findErrorMarker(body); marker != "" {
		class.ErrorCode = marker
	}

	ok := statusCode < http.StatusBadRequest &&
		(!class.HasResult || class.Result == SuccessResult) &&
		class.ErrorCode == ""
	if ok {
		return class, nil
	}

	if class.hasVerdict() {
		switch class.ErrorCode {
		case "not_found":
			return class, NotFoundError{Verdict: class}
		case "forbidden":
			return class, ForbiddenError{Verdict: class}
		default:
			return class, SiteError{Verdict: class}
		}
	}

	// no site payload to go on, fall back on the transport status
	return class, TransportError{Err: fmt.Errorf("http status %d", statusCode)}
}

// parseVerdict decodes the response body as the site's JSON verdict
// object. Bodies without a "result" key are not verdicts, no matter
// what else they contain.
func parseVerdict(body []byte) Classification {
	var raw struct {
		Result   json.RawMessage `json:"result"`
		Messages []string        `json:"messages"`
		Error    string          `json:"error"`
	}
	err := json.Unmarshal(body, &raw)
	if err != nil || raw.Result == nil {
		return Classification{}
	}

	class := Classification{
		HasResult: true,
		Messages:  raw.Messages,
		ErrorCode: raw.Error,
	}

	var asBool bool
	var asString string
	switch {
	case json.Unmarshal(raw.Result, &asBool) == nil:
		if asBool {
			class.Result = SuccessResult
		} else {
			class.Result = "failure"
		}
	case json.Unmarshal(raw.Result, &asString) == nil:
		class.Result = asString
	default:
		class.Result = string(raw.Result)
	}
	return class
}

var errorMarkerRegex = regexp.MustCompile(`'/errors/(\w+)'`)

// findErrorMarker scans an HTML error page for the error code the site
// embeds in its scripts. Error pages are recognizable by the "error"
// class on the body element.
func findErrorMarker(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if doc.Find("body.error").Length() == 0 {
		return ""
	}

	groups := errorMarkerRegex.FindStringSubmatch(htmlutil.ScriptText(doc))
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}
