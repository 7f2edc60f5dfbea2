/**
 * @description
 * Geolocation lookups for transfer source IPs, backed by the ipinfo.io API.
 * Resolution is best-effort: callers fall back to "Unknown" on any failure,
 * so an unreachable resolver never blocks a transfer.
 *
 * @dependencies
 * - github.com/ipinfo/go/v2/ipinfo: The official ipinfo client.
 */
package geoip

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ipinfo/go/v2/ipinfo"
)

var errUnresolvable = errors.New("ip could not be resolved")

// Client wraps the ipinfo API client.
type Client struct {
	api *ipinfo.Client
}

// NewClient creates a geolocation client. The token may be empty; ipinfo then
// serves rate-limited anonymous lookups.
func NewClient(token string) *Client {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return &Client{api: ipinfo.NewClient(httpClient, nil, token)}
}

// Resolve returns a "city, region, country" description for an IP address.
func (c *Client) Resolve(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", errUnresolvable
	}

	info, err := c.api.GetIPInfo(parsed)
	if err != nil {
		return "", err
	}
	if info == nil || info.City == "" {
		return "", errUnresolvable
	}
	return info.City + ", " + info.Region + ", " + info.Country, nil
}
