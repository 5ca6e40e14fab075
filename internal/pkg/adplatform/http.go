package adplatform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ManuelReschke/TrackFox/internal/pkg/apperror"
)

const maxResponseBytes = 32 << 20

// classifyFunc turns a non-2xx response into a typed error.
type classifyFunc func(op string, status int, body []byte) error

func defaultClassify(op string, status int, body []byte) error {
	return apperror.FromHTTPStatus(op, status, body)
}

// doJSON executes req and decodes a 2xx body into out.
func doJSON(ctx context.Context, client *http.Client, req *http.Request, op string, classify classifyFunc, out any) error {
	if classify == nil {
		classify = defaultClassify
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return apperror.FromTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperror.FromTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(op, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.Permanent(op, err)
	}
	return nil
}
