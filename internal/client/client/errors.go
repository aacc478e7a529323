package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/dmitrijs2005/edumarket/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a backend rejection that is neither an auth failure nor an
// outage. Detail comes from the {"detail": ...} body; Fields holds per-field
// validation messages when the backend returns them.
type APIError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d", e.Status)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
		}
	}
	return b.String()
}

const maxErrorBody = 64 << 10

// mapError converts a non-2xx response into a sentinel or *APIError.
func mapError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detailOf(resp))
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	default:
		return apiError(resp)
	}
}

// mapTransportError classifies a failure to get any response at all.
func mapTransportError(err error) error {
	inner := err
	var ue *url.Error
	if errors.As(err, &ue) {
		inner = ue.Err
	}
	switch {
	case errors.Is(inner, ErrUnauthorized), errors.Is(inner, ErrUnavailable):
		// Raised by the auth transport.
		return inner
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func detailOf(resp *http.Response) string {
	e := apiError(resp)
	if ae, ok := e.(*APIError); ok && ae.Detail != "" {
		return ae.Detail
	}
	return http.StatusText(resp.StatusCode)
}

func apiError(resp *http.Response) error {
	ae := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		ae.Detail = strings.TrimSpace(string(body))
		return ae
	}

	for k, v := range raw {
		if k == "detail" {
			_ = json.Unmarshal(v, &ae.Detail)
			continue
		}
		var msgs []string
		if err := json.Unmarshal(v, &msgs); err != nil {
			var one string
			if err := json.Unmarshal(v, &one); err != nil {
				continue
			}
			msgs = []string{one}
		}
		if ae.Fields == nil {
			ae.Fields = make(map[string][]string)
		}
		ae.Fields[k] = msgs
	}
	return ae
}
