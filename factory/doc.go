// Package factory creates the transport used by the openmail client.
//
// The factory abstracts the creation of requesters, allowing switching
// between the in-memory simulated agent network and real HTTPS without
// changing consuming code.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - OPENMAIL_NETWORK_SIMULATION: "true" or "false"
//   - OPENMAIL_NETWORK_TIMEOUT: a duration ("45s") or integer milliseconds
//   - OPENMAIL_NETWORK_USER_AGENT: the User-Agent header
//
// # Usage
//
//	factory := NewRequesterFactory()
//	requester, err := factory.CreateRequester()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or a simulated network for tests
//	network := factory.CreateSimulationForTesting()
//	network.AddDomain("example.com", "mail.example.com")
//
// # Mode Switching
//
//	factory.SwitchToSimulation()
//	factory.SwitchToReal()
package factory
