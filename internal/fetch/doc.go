// Package fetch retrieves catalog documents over HTTP.
//
// The Fetcher interface is the only thing the rest of lorecrawl knows about
// the network: give it a URL, get the raw body back or a transport error.
// HTTPFetcher is the production implementation. It can route requests
// through a SOCKS5 proxy when one is configured.
//
// Every failure returned by HTTPFetcher matches ErrTransport. Non-2xx
// responses are reported as *StatusError so callers can decide whether a
// retry makes sense.
package fetch
