package utils

import (
	"net/http"
	"net/url"

	"github.com/realclientip/realclientip-go"
)

type HttpRes struct {
	Message    string `json:"message,omitempty" example:"status ok"`
	StatusCode int    `json:"statusCode,omitempty" example:"200"`
}

func HttpResOk() HttpRes {
	return HttpRes{
		Message:    "OK",
		StatusCode: http.StatusOK,
	}
}

func HttpResError(errMsg string, statusCode int) (int, HttpRes) {
	return statusCode, HttpRes{
		Message:    errMsg,
		StatusCode: statusCode,
	}
}

// ExtractOrigin reduces a raw URL to its scheme://host origin. Values that
// do not parse as absolute URLs are returned unchanged.
func ExtractOrigin(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

type RealIPExtractor struct {
	strategy realclientip.RightmostTrustedRangeStrategy
}

// NewRealIPExtractor creates a new RealIPExtractor with the given trusted ranges.
func NewRealIPExtractor(trustedRanges []string) (*RealIPExtractor, error) {
	ipNets, err := realclientip.AddressesAndRangesToIPNets(trustedRanges...)
	if err != nil {
		return nil, err
	}

	strategy, err := realclientip.NewRightmostTrustedRangeStrategy("X-Forwarded-For", ipNets)
	if err != nil {
		return nil, err
	}

	return &RealIPExtractor{strategy: strategy}, nil
}

var remoteAddrStrategy = realclientip.RemoteAddrStrategy{}

// Extract returns the client IP for the request, preferring the rightmost
// trusted X-Forwarded-For hop and falling back to the remote address.
func (e *RealIPExtractor) Extract(r *http.Request) string {
	ip := e.strategy.ClientIP(r.Header, r.RemoteAddr)
	if ip == "" {
		ip = remoteAddrStrategy.ClientIP(r.Header, r.RemoteAddr)
	}
	return ip
}
