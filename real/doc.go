// Package real provides the production HTTPS transport for the Mail/HTTPS
// client.
//
// HTTPSRequester implements interfaces.Requester on top of net/http. It
// refuses any URL whose scheme is not https, bounds every request by the
// configured timeout, signs authenticated requests through the request's
// Signer, and rejects responses larger than the request's MaxLength (or the
// configured default) both by Content-Length and while reading.
//
// # Usage
//
//	config := &interfaces.RequesterConfig{
//	    Timeout:   30 * time.Second,
//	    UserAgent: "openmail",
//	}
//	requester := real.NewHTTPSRequester(config, nil)
//
//	resp, err := requester.Do(ctx, &interfaces.Request{
//	    URL: "https://example.com/.well-known/mail.txt",
//	})
//
// An *http.Client may be supplied to control TLS roots and proxies; tests
// pass httptest.Server.Client().
//
// # Factory Integration
//
// The factory package selects this implementation when simulation is off.
package real
