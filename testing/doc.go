// Package testing provides an in-memory Mail/HTTPS agent network for
// deterministic testing of the openmail client.
//
// # Overview
//
// Network implements interfaces.Requester and answers every agent endpoint
// the client uses: well-known discovery documents, liveness probes, account
// registration, profiles and images, the address book, message upload,
// listing and retrieval (broadcast, pairwise link and home views), and
// notifications. Authenticated endpoints verify the SOTN Authorization
// header with crypto.VerifyAuthorization, so signing bugs surface in tests.
//
// Import it under an alias to avoid clashing with the standard library:
//
//	import testsim "github.com/opd-ai/openmail/testing"
//
// # Usage
//
//	network := testsim.NewNetwork()
//	network.AddDomain("example.com", "mail1.example.com", "mail2.example.com")
//	network.AddDomain("example.org", "mail.example.org")
//
//	client, _ := openmail.NewClient(cfg, openmail.WithRequester(network))
//
// # Failure Injection
//
// SetDown makes an agent or well-known host unreachable; SetRejectWrites
// makes an agent fail every mutating request while still answering reads.
// SetMessageHeader rewrites stored envelope headers for tamper tests.
//
// # Request Logs
//
// Every request is recorded as a RequestRecord (method, URL, agent, whether
// it was authenticated and the resulting status). Use Requests to inspect
// the log and ClearRequests to reset it between steps.
//
// # Thread Safety
//
// All methods on Network are safe for concurrent use from multiple
// goroutines. Internal synchronization uses sync.RWMutex.
package testing
