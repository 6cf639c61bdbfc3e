package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/dynjson"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

// getJSON executes a GET with the shared retry policy and decodes the body.
// A non-2xx final status is returned as statusErr so adapters can classify
// it separately from transport and schema errors.
func getJSON(ctx context.Context, doer httpretry.HTTPDoer, fullURL string, headers map[string]string) (dynjson.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return dynjson.Value{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return dynjson.Value{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return dynjson.Value{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dynjson.Value{}, &statusErr{status: resp.StatusCode, body: capString(string(body), 300)}
	}

	v, err := dynjson.Decode(body)
	if err != nil {
		return dynjson.Value{}, err
	}
	return v, nil
}

// statusErr carries the final upstream status for classification.
type statusErr struct {
	status int
	body   string
}

func (e *statusErr) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.status, e.body)
}

// classify resolves an adapter error to its error type, preferring the
// status classification when the upstream answered.
func classify(err error) ErrorType {
	if se, ok := asStatusErr(err); ok {
		return ClassifyStatus(se.status)
	}
	return ClassifyErr(err)
}

func asStatusErr(err error) (*statusErr, bool) {
	for err != nil {
		if se, ok := err.(*statusErr); ok {
			return se, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
