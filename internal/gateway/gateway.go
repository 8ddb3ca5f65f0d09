// Package gateway wraps every authenticated REST call: it attaches the
// session credential, maps failure modes onto the client error taxonomy and
// reports unauthorized outcomes back to the session manager. It never
// retries; retry policy belongs to callers.
package gateway

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
	"github.com/cyrus123live/btc-trading/internal/session"
)

const component = "gateway"

// Gateway issues authenticated requests against the trading server
type Gateway struct {
	client  *resty.Client
	session *session.Manager
	log     *logrus.Entry
}

// New creates a gateway for the server at baseURL using sess for credentials
func New(baseURL string, sess *session.Manager, log *logrus.Entry) *Gateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Gateway{
		client:  client,
		session: sess,
		log:     log,
	}
}

// Get issues an authenticated GET and decodes the JSON response into out
func (g *Gateway) Get(ctx context.Context, path string, params map[string]string, out any) error {
	return g.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post issues an authenticated POST with a JSON body and decodes into out
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPost, path, nil, body, out)
}

func (g *Gateway) do(ctx context.Context, method, path string, params map[string]string, body, out any) error {
	token, ok := g.session.Token()
	if !ok {
		// No credential: reject locally, the server is never contacted
		return errs.NewSessionExpired(component, path)
	}

	req := g.client.R().
		SetContext(ctx).
		SetAuthToken(token)
	if params != nil {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errs.NewNetworkError(component, path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		g.session.NotifyUnauthorized()
		return errs.NewSessionExpired(component, path)
	case !resp.IsSuccess():
		g.log.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode(),
		}).Debug("request rejected by server")
		return errs.NewRequestFailed(component, path, resp.StatusCode())
	}
	return nil
}
