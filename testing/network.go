package testing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// RequestRecord is one request seen by the simulated network.
type RequestRecord struct {
	Method        string
	URL           string
	Agent         string
	Authenticated bool
	Status        int
}

type storedMessage struct {
	header map[string]string
	body   []byte
	links  map[string]bool
}

func (m *storedMessage) broadcast() bool {
	return m.header["message-access"] == ""
}

type account struct {
	signingKey    crypto.Key
	profile       []byte
	image         []byte
	links         map[string][]byte
	linkOrder     []string
	messages      map[string]*storedMessage
	messageOrder  []string
	notifications []string
}

// Network is an in-memory Mail/HTTPS deployment: well-known documents,
// agents and the accounts they serve. Every agent can serve every account,
// the way real agents proxy requests for foreign domains. It implements
// interfaces.Requester and is safe for concurrent use.
type Network struct {
	mu           sync.RWMutex
	wellKnown    map[string]string
	agents       map[string]bool
	down         map[string]bool
	rejectWrites map[string]bool
	accounts     map[address.Address]*account
	log          []RequestRecord
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "NewNetwork",
	}).Info("Creating simulated agent network")

	return &Network{
		wellKnown:    make(map[string]string),
		agents:       make(map[string]bool),
		down:         make(map[string]bool),
		rejectWrites: make(map[string]bool),
		accounts:     make(map[address.Address]*account),
	}
}

// IsSimulation implements interfaces.Requester.
func (n *Network) IsSimulation() bool { return true }

// AddDomain publishes a well-known document for domain listing agents and
// brings every listed agent up.
func (n *Network) AddDomain(domain string, agents ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.wellKnown[domain] = "# agents for " + domain + "\n" + strings.Join(agents, "\n") + "\n"
	for _, a := range agents {
		n.agents[a] = true
	}
}

// SetWellKnown publishes an arbitrary well-known document on host.
func (n *Network) SetWellKnown(host, document string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wellKnown[host] = document
}

// AddAgent brings up an agent that is not listed in any document.
func (n *Network) AddAgent(agent string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.agents[agent] = true
}

// SetDown makes host (an agent or a well-known host) unreachable or
// reachable again.
func (n *Network) SetDown(host string, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[host] = down
}

// SetRejectWrites makes agent answer every PUT, POST and DELETE with 503.
func (n *Network) SetRejectWrites(agent string, reject bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectWrites[agent] = reject
}

// Requests returns a copy of the request log.
func (n *Network) Requests() []RequestRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]RequestRecord(nil), n.log...)
}

// ClearRequests empties the request log.
func (n *Network) ClearRequests() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = nil
}

// HasAccount reports whether addr is registered.
func (n *Network) HasAccount(addr address.Address) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.accounts[addr]
	return ok
}

// MessageIDs returns the ids stored for author in upload order.
func (n *Network) MessageIDs(author address.Address) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if acc, ok := n.accounts[author]; ok {
		return append([]string(nil), acc.messageOrder...)
	}
	return nil
}

// MessageHeader returns a copy of the stored wire headers of a message.
func (n *Network) MessageHeader(author address.Address, id string) (map[string]string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	acc, ok := n.accounts[author]
	if !ok {
		return nil, false
	}
	m, ok := acc.messages[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m.header))
	for k, v := range m.header {
		out[k] = v
	}
	return out, true
}

// SetMessageHeader overwrites one stored wire header, for tamper tests.
func (n *Network) SetMessageHeader(author address.Address, id, name, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if acc, ok := n.accounts[author]; ok {
		if m, ok := acc.messages[id]; ok {
			m.header[strings.ToLower(name)] = value
		}
	}
}

// PushNotification appends a raw notification line to addr's inbox.
func (n *Network) PushNotification(addr address.Address, line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if acc, ok := n.accounts[addr]; ok {
		acc.notifications = append(acc.notifications, line)
	}
}

// Notifications returns addr's raw notification lines.
func (n *Network) Notifications(addr address.Address) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if acc, ok := n.accounts[addr]; ok {
		return append([]string(nil), acc.notifications...)
	}
	return nil
}

// simResponse is what a handler produces; status 0 means 200.
type simResponse struct {
	status int
	header map[string]string
	body   []byte
}

func fail(status int) (*simResponse, error) {
	return &simResponse{status: status}, nil
}

func ok(body []byte) (*simResponse, error) {
	return &simResponse{status: http.StatusOK, body: body}, nil
}

// Do implements interfaces.Requester.
func (n *Network) Do(ctx context.Context, req *interfaces.Request) (*interfaces.Response, error) {
	method := interfaces.MethodOf(req)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrNetwork, err)
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: invalid url %q", interfaces.ErrNetwork, req.URL)
	}
	host := u.Hostname()

	var auth string
	if req.Signer != nil {
		auth, err = req.Signer.Authorization(host)
		if err != nil {
			return nil, fmt.Errorf("%w: authorization: %w", interfaces.ErrNetwork, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	record := RequestRecord{Method: method, URL: req.URL, Agent: host, Authenticated: req.Signer != nil}

	if n.down[host] {
		n.log = append(n.log, record)
		return nil, fmt.Errorf("%w: %s unreachable", interfaces.ErrNetwork, host)
	}

	resp, err := n.route(method, host, u.Path, auth, req)
	if err != nil {
		n.log = append(n.log, record)
		return nil, err
	}
	record.Status = resp.status
	n.log = append(n.log, record)

	if !interfaces.IsSuccess(resp.status) {
		return nil, interfaces.StatusError(method, req.URL, resp.status)
	}
	if req.MaxLength > 0 && int64(len(resp.body)) > req.MaxLength {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", interfaces.ErrNetwork, req.MaxLength)
	}

	header := make(map[string]string, len(resp.header)+1)
	for k, v := range resp.header {
		header[k] = v
	}
	body := append([]byte(nil), resp.body...)
	if method == http.MethodHead {
		body = nil
	}

	return &interfaces.Response{StatusCode: resp.status, Header: header, Body: body}, nil
}

func (n *Network) route(method, host, path, auth string, req *interfaces.Request) (*simResponse, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	if len(segments) == 2 && segments[0] == ".well-known" && segments[1] == "mail.txt" {
		doc, found := n.wellKnown[host]
		if !found || method != http.MethodGet {
			return nil, fmt.Errorf("%w: no well-known document on %s", interfaces.ErrNetwork, host)
		}
		return ok([]byte(doc))
	}

	if !n.agents[host] {
		return nil, fmt.Errorf("%w: %s is not an agent", interfaces.ErrNetwork, host)
	}

	isWrite := method == http.MethodPut || method == http.MethodPost || method == http.MethodDelete
	if isWrite && n.rejectWrites[host] {
		return fail(http.StatusServiceUnavailable)
	}

	if len(segments) == 2 && segments[0] == "mail" && method == http.MethodHead {
		return ok(nil)
	}
	if len(segments) < 3 {
		return fail(http.StatusNotFound)
	}

	addr, err := address.Parse(segments[2] + "@" + segments[1])
	if err != nil {
		return fail(http.StatusBadRequest)
	}

	var key crypto.Key
	if auth != "" {
		key, err = crypto.VerifyAuthorization(auth, host)
		if err != nil {
			return fail(http.StatusUnauthorized)
		}
	}

	switch segments[0] {
	case "account":
		return n.handleAccount(method, addr, key, req.Body, len(segments))
	case "home":
		acc, found := n.accounts[addr]
		if !found {
			return fail(http.StatusNotFound)
		}
		if auth == "" || !key.Equal(acc.signingKey) {
			return fail(http.StatusUnauthorized)
		}
		return n.handleHome(method, addr, acc, segments[3:], req)
	case "mail":
		acc, found := n.accounts[addr]
		if !found {
			return fail(http.StatusNotFound)
		}
		return n.handleMail(method, addr, acc, key, segments[3:], req.Body)
	default:
		return fail(http.StatusNotFound)
	}
}

func (n *Network) handleAccount(method string, addr address.Address, key crypto.Key, body []byte, segments int) (*simResponse, error) {
	if segments != 3 || key.IsZero() {
		return fail(http.StatusUnauthorized)
	}

	switch method {
	case http.MethodPut, http.MethodPost:
		if _, exists := n.accounts[addr]; exists {
			return fail(http.StatusConflict)
		}
		n.accounts[addr] = &account{
			signingKey: key,
			profile:    append([]byte(nil), body...),
			links:      make(map[string][]byte),
			messages:   make(map[string]*storedMessage),
		}
		return ok(nil)
	case http.MethodDelete:
		acc, exists := n.accounts[addr]
		if !exists {
			return fail(http.StatusNotFound)
		}
		if !key.Equal(acc.signingKey) {
			return fail(http.StatusUnauthorized)
		}
		delete(n.accounts, addr)
		return ok(nil)
	default:
		return fail(http.StatusMethodNotAllowed)
	}
}

func (n *Network) handleHome(method string, addr address.Address, acc *account, rest []string, req *interfaces.Request) (*simResponse, error) {
	if len(rest) == 0 {
		if method == http.MethodHead {
			return ok(nil)
		}
		return fail(http.StatusMethodNotAllowed)
	}

	switch rest[0] {
	case "profile":
		switch method {
		case http.MethodPut:
			acc.profile = append([]byte(nil), req.Body...)
			return ok(nil)
		case http.MethodDelete:
			acc.profile = nil
			return ok(nil)
		}
	case "image":
		switch method {
		case http.MethodPut:
			acc.image = append([]byte(nil), req.Body...)
			return ok(nil)
		case http.MethodDelete:
			acc.image = nil
			return ok(nil)
		}
	case "links":
		return n.handleLinks(method, acc, rest[1:], req.Body)
	case "messages":
		return n.handleHomeMessages(method, addr, acc, rest[1:], req)
	case "notifications":
		if method == http.MethodGet && len(rest) == 1 {
			return ok([]byte(strings.Join(acc.notifications, "\n")))
		}
	}
	return fail(http.StatusNotFound)
}

func (n *Network) handleLinks(method string, acc *account, rest []string, body []byte) (*simResponse, error) {
	if len(rest) == 0 {
		if method != http.MethodGet {
			return fail(http.StatusMethodNotAllowed)
		}
		lines := make([]string, 0, len(acc.linkOrder))
		for _, link := range acc.linkOrder {
			lines = append(lines, link+","+string(acc.links[link]))
		}
		return ok([]byte(strings.Join(lines, "\n")))
	}

	link := rest[0]
	switch method {
	case http.MethodPut:
		if _, exists := acc.links[link]; !exists {
			acc.linkOrder = append(acc.linkOrder, link)
		}
		acc.links[link] = append([]byte(nil), body...)
		return ok(nil)
	case http.MethodDelete:
		if _, exists := acc.links[link]; !exists {
			return fail(http.StatusNotFound)
		}
		delete(acc.links, link)
		acc.linkOrder = removeString(acc.linkOrder, link)
		return ok(nil)
	}
	return fail(http.StatusMethodNotAllowed)
}

func (n *Network) handleHomeMessages(method string, addr address.Address, acc *account, rest []string, req *interfaces.Request) (*simResponse, error) {
	if len(rest) == 0 {
		switch method {
		case http.MethodGet:
			return ok([]byte(strings.Join(acc.messageOrder, "\n")))
		case http.MethodPut, http.MethodPost:
			return n.storeMessage(addr, acc, req)
		}
		return fail(http.StatusMethodNotAllowed)
	}

	id := rest[0]
	m, found := acc.messages[id]
	if !found {
		return fail(http.StatusNotFound)
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return &simResponse{status: http.StatusOK, header: m.header, body: m.body}, nil
	case http.MethodDelete:
		delete(acc.messages, id)
		acc.messageOrder = removeString(acc.messageOrder, id)
		return ok(nil)
	}
	return fail(http.StatusMethodNotAllowed)
}

func (n *Network) storeMessage(addr address.Address, acc *account, req *interfaces.Request) (*simResponse, error) {
	header := make(map[string]string, len(req.Header))
	for k, v := range req.Header {
		header[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	id := header["message-id"]
	if id == "" {
		return fail(http.StatusBadRequest)
	}

	links := make(map[string]bool)
	for _, entry := range wire.SplitList(header["message-access"]) {
		if link := wire.ParseAttrs(entry)["link"]; link != "" {
			links[link] = true
		}
	}

	if _, exists := acc.messages[id]; !exists {
		acc.messageOrder = append(acc.messageOrder, id)
	}
	acc.messages[id] = &storedMessage{header: header, body: append([]byte(nil), req.Body...), links: links}

	logrus.WithFields(logrus.Fields{
		"function": "Network.storeMessage",
		"author":   addr.String(),
		"id":       shortID(id),
		"readers":  len(links),
	}).Debug("Stored simulated message")
	return ok(nil)
}

func (n *Network) handleMail(method string, addr address.Address, acc *account, key crypto.Key, rest []string, body []byte) (*simResponse, error) {
	if len(rest) == 0 {
		return fail(http.StatusNotFound)
	}

	switch rest[0] {
	case "profile":
		if method == http.MethodGet && acc.profile != nil {
			return ok(acc.profile)
		}
	case "image":
		if method == http.MethodGet && acc.image != nil {
			return ok(acc.image)
		}
	case "messages":
		return n.serveMessages(method, acc, rest[1:], func(m *storedMessage) bool { return m.broadcast() })
	case "link":
		if len(rest) < 3 {
			return fail(http.StatusNotFound)
		}
		link := rest[1]
		requester, found := n.accountByKey(key)
		if !found || address.Link(addr, requester) != link {
			return fail(http.StatusUnauthorized)
		}
		switch rest[2] {
		case "messages":
			return n.serveMessages(method, acc, rest[3:], func(m *storedMessage) bool { return m.links[link] })
		case "notifications":
			if method != http.MethodPut || len(rest) != 3 {
				return fail(http.StatusMethodNotAllowed)
			}
			line := strings.Join([]string{uuid.NewString(), link, crypto.Fingerprint(key), strings.TrimSpace(string(body))}, ",")
			acc.notifications = append(acc.notifications, line)
			return ok(nil)
		}
	}
	return fail(http.StatusNotFound)
}

func (n *Network) serveMessages(method string, acc *account, rest []string, visible func(*storedMessage) bool) (*simResponse, error) {
	if len(rest) == 0 {
		if method != http.MethodGet {
			return fail(http.StatusMethodNotAllowed)
		}
		var ids []string
		for _, id := range acc.messageOrder {
			if visible(acc.messages[id]) {
				ids = append(ids, id)
			}
		}
		return ok([]byte(strings.Join(ids, "\n")))
	}

	m, found := acc.messages[rest[0]]
	if !found || !visible(m) {
		return fail(http.StatusNotFound)
	}
	if method != http.MethodGet && method != http.MethodHead {
		return fail(http.StatusMethodNotAllowed)
	}
	return &simResponse{status: http.StatusOK, header: m.header, body: m.body}, nil
}

func (n *Network) accountByKey(key crypto.Key) (address.Address, bool) {
	if key.IsZero() {
		return address.Address{}, false
	}
	// deterministic when several accounts share a key
	addrs := make([]address.Address, 0, len(n.accounts))
	for a := range n.accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })
	for _, a := range addrs {
		if n.accounts[a].signingKey.Equal(key) {
			return a, true
		}
	}
	return address.Address{}, false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
