// Command openmail is a command-line front end for a Mail/HTTPS account.
//
// The session identity is kept in the system keyring; settings come from a
// YAML file (see package config) and OPENMAIL_* environment variables.
//
//	openmail register alice@example.com
//	openmail send --to bob@example.org --subject Hello "hi there"
//	openmail sync
//	openmail inbox
package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/opd-ai/openmail"
	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/cache"
	"github.com/opd-ai/openmail/config"
	"github.com/opd-ai/openmail/credential"
	"github.com/opd-ai/openmail/factory"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/messaging"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type command struct {
	usage string
	run   func(ctx context.Context, env *environment, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"register":       {"register ADDRESS", cmdRegister},
		"login":          {"login ADDRESS SIGNING-KEYS ENCRYPTION-KEYS KEY-ID", cmdLogin},
		"logout":         {"logout", cmdLogout},
		"delete-account": {"delete-account", cmdDeleteAccount},
		"whoami":         {"whoami", cmdWhoami},
		"agents":         {"agents HOST", cmdAgents},
		"profile":        {"profile [ADDRESS]", cmdProfile},
		"set-profile":    {"set-profile KEY=VALUE...", cmdSetProfile},
		"contacts":       {"contacts", cmdContacts},
		"add-contact":    {"add-contact [--no-broadcasts] ADDRESS", cmdAddContact},
		"remove-contact": {"remove-contact ADDRESS", cmdRemoveContact},
		"send":           {"send [--to ADDRESS,...] --subject TEXT [--attach FILE]... BODY", cmdSend},
		"delete":         {"delete MESSAGE-ID", cmdDelete},
		"sync":           {"sync", cmdSync},
		"inbox":          {"inbox", listCollection(openmail.Inbox)},
		"outbox":         {"outbox", listCollection(openmail.Outbox)},
		"sent":           {"sent", listCollection(openmail.Sent)},
		"broadcasts":     {"broadcasts", listCollection(openmail.Broadcasts)},
		"notifications":  {"notifications", cmdNotifications},
		"download":       {"download MESSAGE-ID NAME [--output FILE]", cmdDownload},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, logLevel string

	flagSet := pflag.NewFlagSet("openmail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", config.DefaultConfigPath(), "configuration file")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flagSet.SetInterspersed(false)
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logrus.SetLevel(cfg.Level())

	name, args := flagSet.Arg(0), flagSet.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	env := &environment{cfg: cfg}
	defer env.close()

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"command":  name,
		"run_id":   uuid.NewString(),
	}).Debug("Running command")
	return cmd.run(ctx, env, args)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Println("Usage: openmail [flags] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, commands[name].usage)
	}
	w.Flush()
	fmt.Println()
	fmt.Println("Flags:")
	flagSet.PrintDefaults()
}

// environment builds the collaborators of a command lazily.
type environment struct {
	cfg       *config.Config
	requester interfaces.Requester
	creds     *credential.Store
	client    *openmail.Client
}

func (e *environment) close() {
	if e.client == nil {
		return
	}
	e.client.User().Wipe()
}

func (e *environment) credentials() (*credential.Store, error) {
	if e.creds == nil {
		s, err := credential.Open(filepath.Join(e.cfg.DataDir, "keyring"))
		if err != nil {
			return nil, err
		}
		e.creds = s
	}
	return e.creds, nil
}

func (e *environment) transport() (interfaces.Requester, error) {
	if e.requester == nil {
		r, err := factory.NewRequesterFactory().CreateRequesterWithConfig(&interfaces.RequesterConfig{
			UseSimulation: e.cfg.Network.Simulation,
			Timeout:       e.cfg.Network.Timeout,
			UserAgent:     e.cfg.Network.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		e.requester = r
	}
	return e.requester, nil
}

func (e *environment) session(user *openmail.User) (*openmail.Client, error) {
	requester, err := e.transport()
	if err != nil {
		return nil, err
	}
	dataDir := filepath.Join(e.cfg.DataDir, user.Address.String())
	store, err := cache.Open(e.cfg.Cache.Backend, dataDir)
	if err != nil {
		return nil, err
	}

	options := openmail.NewOptions()
	options.Requester = requester
	options.Store = store
	options.DataDir = dataDir
	options.AgentCacheTTL = e.cfg.Agents.CacheTTL
	options.MaxAgents = e.cfg.Agents.Max
	options.VerifySignatures = e.cfg.Security.VerifySignatures

	c, err := openmail.New(user, options)
	if err != nil {
		store.Close()
		return nil, err
	}
	e.client = c
	return c, nil
}

// loggedIn restores the stored identity.
func (e *environment) loggedIn() (*openmail.Client, error) {
	creds, err := e.credentials()
	if err != nil {
		return nil, err
	}
	id, err := creds.Load()
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, errors.New("not logged in")
		}
		return nil, err
	}
	user, err := openmail.UserFromCredential(id)
	if err != nil {
		return nil, err
	}
	return e.session(user)
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: openmail %s", usage)
	}
	return nil
}

func cmdRegister(ctx context.Context, env *environment, args []string) error {
	if err := needArgs(args, 1, commands["register"].usage); err != nil {
		return err
	}
	addr, err := address.Parse(args[0])
	if err != nil {
		return err
	}
	user, err := openmail.NewUser(addr)
	if err != nil {
		return err
	}
	c, err := env.session(user)
	if err != nil {
		return err
	}
	if err := c.Register(ctx); err != nil {
		return err
	}
	creds, err := env.credentials()
	if err != nil {
		return err
	}
	if err := creds.Save(user.Credential()); err != nil {
		return err
	}
	fmt.Printf("Registered %s\n", addr)
	return nil
}

func cmdLogin(ctx context.Context, env *environment, args []string) error {
	if err := needArgs(args, 4, commands["login"].usage); err != nil {
		return err
	}
	user, err := openmail.UserFromBase64(args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	c, err := env.session(user)
	if err != nil {
		return err
	}
	if !c.Authenticate(ctx) {
		return errors.New("authentication failed")
	}
	creds, err := env.credentials()
	if err != nil {
		return err
	}
	if err := creds.Save(user.Credential()); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", user.Address)
	return nil
}

func cmdLogout(_ context.Context, env *environment, _ []string) error {
	c := env.client
	if c == nil {
		var err error
		if c, err = env.loggedIn(); err != nil {
			return err
		}
	}
	creds, err := env.credentials()
	if err != nil {
		return err
	}
	if err := creds.Delete(); err != nil {
		return err
	}
	env.client = nil
	return c.Logout()
}

func cmdDeleteAccount(ctx context.Context, env *environment, args []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	if err := c.DeleteAccount(ctx); err != nil {
		return err
	}
	return cmdLogout(ctx, env, args)
}

func cmdWhoami(_ context.Context, env *environment, _ []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	u := c.User()
	fmt.Println(u.Address)
	fmt.Printf("signing key:    %s\n", u.Signing.Public)
	fmt.Printf("encryption key: %s (id %s)\n", u.Encryption.Public, u.Encryption.Public.ID)
	return nil
}

func cmdAgents(ctx context.Context, env *environment, args []string) error {
	if err := needArgs(args, 1, commands["agents"].usage); err != nil {
		return err
	}
	requester, err := env.transport()
	if err != nil {
		return err
	}
	resolver := agent.NewResolver(requester, agent.WithMaxAgents(env.cfg.Agents.Max))
	for _, a := range resolver.Resolve(ctx, args[0]) {
		fmt.Println(a)
	}
	return nil
}

func cmdProfile(ctx context.Context, env *environment, args []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	addr := c.User().Address
	if len(args) > 0 {
		if addr, err = address.Parse(args[0]); err != nil {
			return err
		}
	}
	p, err := c.FetchProfile(ctx, addr)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, f := range p.Fields() {
		fmt.Fprintf(w, "%s\t%s\n", f.Key, f.Value)
	}
	return w.Flush()
}

func cmdSetProfile(ctx context.Context, env *environment, args []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	values := make([]wire.Pair, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		values = append(values, wire.P(k, v))
	}
	return c.UpdateProfile(ctx, values)
}

func cmdContacts(ctx context.Context, env *environment, _ []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	contacts, err := c.FetchContacts(ctx)
	if err != nil {
		return err
	}
	for _, contact := range contacts {
		fmt.Printf("%s\tbroadcasts=%s\n", contact.Address, wire.YesNo(contact.ReceiveBroadcasts))
	}
	return nil
}

func cmdAddContact(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("add-contact", pflag.ContinueOnError)
	noBroadcasts := fs.Bool("no-broadcasts", false, "do not receive broadcasts from the contact")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs.Args(), 1, commands["add-contact"].usage); err != nil {
		return err
	}
	addr, err := address.Parse(fs.Arg(0))
	if err != nil {
		return err
	}
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	p, err := c.NewContact(ctx, addr, !*noBroadcasts)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", addr, p.Name())
	return nil
}

func cmdRemoveContact(ctx context.Context, env *environment, args []string) error {
	if err := needArgs(args, 1, commands["remove-contact"].usage); err != nil {
		return err
	}
	addr, err := address.Parse(args[0])
	if err != nil {
		return err
	}
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	return c.DeleteContact(ctx, addr)
}

func cmdSend(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	to := fs.StringSlice("to", nil, "readers; none sends a broadcast")
	subject := fs.String("subject", "", "subject line")
	thread := fs.String("thread", "", "subject id of the thread to continue")
	attach := fs.StringArray("attach", nil, "file to attach")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("usage: openmail %s", commands["send"].usage)
	}

	draft := &openmail.Draft{
		Subject:   *subject,
		SubjectID: *thread,
		Body:      []byte(strings.Join(fs.Args(), " ")),
	}
	for _, r := range *to {
		addr, err := address.Parse(r)
		if err != nil {
			return err
		}
		draft.Readers = append(draft.Readers, addr)
	}
	for _, path := range *attach {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		draft.Attachments = append(draft.Attachments, openmail.File{
			Name:     filepath.Base(path),
			Type:     mime.TypeByExtension(filepath.Ext(path)),
			Modified: info.ModTime(),
			Data:     data,
		})
	}

	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	id, err := c.Send(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func cmdDelete(ctx context.Context, env *environment, args []string) error {
	if err := needArgs(args, 1, commands["delete"].usage); err != nil {
		return err
	}
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	return c.DeleteMessage(ctx, args[0])
}

func cmdSync(ctx context.Context, env *environment, _ []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	err = c.Sync(ctx)
	fmt.Printf("inbox %d, outbox %d, sent %d, broadcasts %d, contact requests %d\n",
		len(c.Messages(openmail.Inbox)), len(c.Messages(openmail.Outbox)),
		len(c.Messages(openmail.Sent)), len(c.Messages(openmail.Broadcasts)),
		len(c.ContactRequests()))
	return err
}

func fetchCollection(ctx context.Context, c *openmail.Client, collection openmail.Collection) ([]*messaging.Message, error) {
	switch collection {
	case openmail.Inbox:
		if _, err := c.FetchContacts(ctx); err != nil {
			return nil, err
		}
		if _, err := c.FetchNotifications(ctx); err != nil {
			return nil, err
		}
		return c.FetchInbox(ctx)
	case openmail.Broadcasts:
		if _, err := c.FetchContacts(ctx); err != nil {
			return nil, err
		}
		return c.FetchBroadcasts(ctx)
	case openmail.Outbox:
		return c.FetchOutbox(ctx)
	default:
		return c.FetchSent(ctx)
	}
}

func listCollection(collection openmail.Collection) func(context.Context, *environment, []string) error {
	return func(ctx context.Context, env *environment, _ []string) error {
		c, err := env.loggedIn()
		if err != nil {
			return err
		}
		msgs, err := fetchCollection(ctx, c, collection)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(m.ID()), m.Envelope.Date.Format("2006-01-02 15:04"), m.Envelope.Author, m.Envelope.Subject)
		}
		return w.Flush()
	}
}

func cmdNotifications(ctx context.Context, env *environment, _ []string) error {
	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	if _, err := c.FetchContacts(ctx); err != nil {
		return err
	}
	if _, err := c.FetchNotifications(ctx); err != nil {
		return err
	}
	for _, n := range c.ContactRequests() {
		fmt.Printf("%s\t%s\n", n.From, n.Received.Format("2006-01-02 15:04"))
	}
	return nil
}

func cmdDownload(ctx context.Context, env *environment, args []string) error {
	fs := pflag.NewFlagSet("download", pflag.ContinueOnError)
	output := fs.StringP("output", "o", "", "output file (default: NAME)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs.Args(), 2, commands["download"].usage); err != nil {
		return err
	}
	id, name := fs.Arg(0), fs.Arg(1)

	c, err := env.loggedIn()
	if err != nil {
		return err
	}
	for _, collection := range []openmail.Collection{openmail.Inbox, openmail.Broadcasts, openmail.Sent} {
		msgs, err := fetchCollection(ctx, c, collection)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if !strings.HasPrefix(m.ID(), id) {
				continue
			}
			data, err := c.DownloadAttachment(ctx, m, name)
			if err != nil {
				return err
			}
			path := *output
			if path == "" {
				path = filepath.Base(name)
			}
			return os.WriteFile(path, data, 0o600)
		}
	}
	return fmt.Errorf("no message %s with attachment %q", id, name)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
