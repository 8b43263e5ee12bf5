// Package interfaces defines the transport abstraction between the
// Mail/HTTPS client and the agents it talks to.
//
// This package provides the foundational interfaces that enable switching
// between the real HTTPS implementation and the in-memory simulated agent
// network, supporting both production use and deterministic testing.
//
// # Core Interfaces
//
// [Requester] executes one HTTPS request and returns either a 2xx
// [Response] or an error wrapping [ErrNetwork]:
//
//	resp, err := requester.Do(ctx, &interfaces.Request{
//	    Method: http.MethodHead,
//	    URL:    "https://mail.example.com/home/example.com/alice",
//	    Signer: user,
//	})
//	if errors.Is(err, interfaces.ErrNetwork) {
//	    // try the next agent
//	}
//
// [Signer] builds the SOTN Authorization header for a given agent host. A
// nil Signer sends the request unauthenticated.
//
// # Configuration
//
// [RequesterConfig] holds settings for requester implementations:
//
//	config := &interfaces.RequesterConfig{
//	    Timeout:   30 * time.Second,
//	    UserAgent: "openmail",
//	}
//	if err := config.Validate(); err != nil {
//	    log.Fatalf("invalid config: %v", err)
//	}
//
// # Implementation Selection
//
// The factory package creates implementations based on configuration:
//   - UseSimulation=true: creates a Network from the testing package
//   - UseSimulation=false: creates an HTTPSRequester from the real package
//
// # Thread Safety
//
// All implementations must be safe for concurrent use; sync fans requests
// out across goroutines.
package interfaces
