package llm

import (
	"context"
	"net/http"
)

// send makes exactly one attempt. Callers own the retry policy, so a
// provider never multiplies their attempt count.
func send(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := newReq()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return client.Do(req)
}
