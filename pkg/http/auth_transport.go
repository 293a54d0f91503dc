package http

import "net/http"

// apiKeyTransport attaches the service API key as a bearer token.
type apiKeyTransport struct {
	apiKey    string
	transport http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey == "" {
		return t.transport.RoundTrip(req)
	}

	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set("Authorization", BearerToken(t.apiKey))

	return t.transport.RoundTrip(reqCopy)
}

// BearerToken formats an API key for the Authorization header.
func BearerToken(apiKey string) string {
	return "Bearer " + apiKey
}

func WithAPIKey(apiKey string) Option {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &apiKeyTransport{
			apiKey:    apiKey,
			transport: rt,
		}
	})
}
