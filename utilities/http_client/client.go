package http_client

import (
	"crypto/tls"
	"net/http"
	"time"
)

var (
	httpClient      *http.Client
	streamingClient *http.Client
)

func GetClient() *http.Client {
	if httpClient != nil {
		return httpClient
	}

	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableKeepAlives:   false,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		},
		Timeout: time.Second * 30,
	}

	return httpClient
}

// GetStreamingClient returns a client without a request timeout, for
// long-lived event-stream subscriptions against the realtime store.
func GetStreamingClient() *http.Client {
	if streamingClient != nil {
		return streamingClient
	}

	streamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableKeepAlives:   false,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		},
	}

	return streamingClient
}
