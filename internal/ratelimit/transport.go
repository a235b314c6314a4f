package ratelimit

import "net/http"

// Transport reports every round trip to a Governor: BeforeCall gates the
// request, AfterCall feeds the response headers back. Placing it below the
// response cache keeps replayed responses out of the budget.
type Transport struct {
	Base     http.RoundTripper
	Governor *Governor
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Governor.BeforeCall(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.Governor.AfterCall(resp.Header)
	return resp, nil
}
