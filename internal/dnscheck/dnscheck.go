// Package dnscheck compares the address records the inventory asks for with
// what the authoritative DNS server actually answers.
package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
)

// DefaultTimeout is the per-query timeout.
const DefaultTimeout = 5 * time.Second

// Status is the outcome of checking one name.
type Status string

const (
	StatusOK       Status = "ok"
	StatusMissing  Status = "missing"
	StatusMismatch Status = "mismatch"
	StatusError    Status = "error"
)

// Expectation is an address record that should be served.
type Expectation struct {
	Name string
	Addr netip.Addr
}

// Type returns the record type for the expected address.
func (e Expectation) Type() uint16 {
	if e.Addr.Is4() {
		return dns.TypeA
	}
	return dns.TypeAAAA
}

// Finding is the result of checking one Expectation.
type Finding struct {
	Name   string
	Type   string
	Want   string
	Got    []string
	Status Status
	Err    error
}

func (f Finding) String() string {
	s := fmt.Sprintf("[%s] %s %s want=%s", f.Status, f.Type, f.Name, f.Want)
	if len(f.Got) > 0 {
		s += " got=" + strings.Join(f.Got, ",")
	}
	if f.Err != nil {
		s += ": " + f.Err.Error()
	}
	return s
}

// Report collects the findings of a verification.
type Report struct {
	Findings []Finding
}

// Count returns the number of findings with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, f := range r.Findings {
		if f.Status == status {
			n++
		}
	}
	return n
}

// OK reports whether every expectation was served.
func (r *Report) OK() bool {
	return r.Count(StatusOK) == len(r.Findings)
}

// Summary returns a one-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("checked=%d ok=%d missing=%d mismatch=%d error=%d",
		len(r.Findings), r.Count(StatusOK), r.Count(StatusMissing),
		r.Count(StatusMismatch), r.Count(StatusError))
}

// Checker queries one DNS server.
type Checker struct {
	server string
	client *dns.Client
	logger *slog.Logger
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithTCP queries over TCP instead of UDP.
func WithTCP(useTCP bool) Option {
	return func(c *Checker) {
		if useTCP {
			c.client.Net = "tcp"
		}
	}
}

// WithTimeout sets the per-query timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Checker for server ("host:port").
func New(server string, opts ...Option) *Checker {
	c := &Checker{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the answers of type qtype for name as strings. A name
// that does not exist yields no answers and no error.
func (c *Checker) Lookup(ctx context.Context, name string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = false

	resp, rtt, err := c.exchangeWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("querying %s %s: %w", dns.TypeToString[qtype], name, err)
	}

	c.logger.Debug("dns query",
		slog.String("name", name),
		slog.String("type", dns.TypeToString[qtype]),
		slog.String("rcode", dns.RcodeToString[resp.Rcode]),
		slog.Duration("rtt", rtt),
	)

	switch resp.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	default:
		return nil, fmt.Errorf("querying %s %s: server answered %s", dns.TypeToString[qtype], name, dns.RcodeToString[resp.Rcode])
	}

	var out []string
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, v.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				out = append(out, v.AAAA.String())
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// exchangeWithContext performs DNS exchange with context support.
func (c *Checker) exchangeWithContext(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	type result struct {
		resp *dns.Msg
		rtt  time.Duration
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		resp, rtt, err := c.client.Exchange(msg, c.server)
		ch <- result{resp, rtt, err}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case r := <-ch:
		return r.resp, r.rtt, r.err
	}
}

// Verify checks each expectation. Query failures are reported as findings;
// only a cancelled context aborts the verification.
func (c *Checker) Verify(ctx context.Context, want []Expectation) (*Report, error) {
	report := &Report{}

	for _, e := range want {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		qtype := e.Type()
		f := Finding{
			Name: e.Name,
			Type: dns.TypeToString[qtype],
			Want: e.Addr.String(),
		}

		got, err := c.Lookup(ctx, e.Name, qtype)
		switch {
		case err != nil:
			f.Status = StatusError
			f.Err = err
		case len(got) == 0:
			f.Status = StatusMissing
		case contains(got, e.Addr):
			f.Status = StatusOK
		default:
			f.Status = StatusMismatch
		}
		f.Got = got

		if f.Status != StatusOK {
			c.logger.Warn("record not served as expected", slog.String("finding", f.String()))
		}
		report.Findings = append(report.Findings, f)
	}

	return report, nil
}

func contains(answers []string, addr netip.Addr) bool {
	for _, a := range answers {
		if parsed, err := netip.ParseAddr(a); err == nil && parsed.Unmap() == addr.Unmap() {
			return true
		}
	}
	return false
}

// FromInventory derives the expected address records from inventory
// addresses: entries with a DNS name under root, one per name and family,
// where the last entry wins as it does when reconciling.
func FromInventory(ips []inventory.IPAddress, root string) []Expectation {
	suffix := "." + strings.TrimSuffix(root, ".")

	type key struct {
		name string
		v4   bool
	}
	index := make(map[key]int)
	var out []Expectation

	for _, ip := range ips {
		name := ip.DNSName
		if name == "" || !ip.Address.IsValid() || !strings.HasSuffix(name, suffix) {
			continue
		}
		e := Expectation{Name: name, Addr: ip.Address}
		k := key{name: name, v4: e.Addr.Is4()}
		if i, ok := index[k]; ok {
			out[i] = e
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}
