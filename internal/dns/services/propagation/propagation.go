// Package propagation implements the propagation diagnostic: it queries a
// fixed table of public resolvers for a domain's A record and reports each
// resolver's answer and latency. It is read-only and shares no state with the
// proxy core.
package propagation

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/miekg/dns"
)

const defaultTimeout = 2 * time.Second

// Server is one resolver in the diagnostic table.
type Server struct {
	Label string
	Addr  string // ip:port
}

// DefaultServers is the classic table of twenty public resolvers.
var DefaultServers = []Server{
	{Label: "Google Primary", Addr: "8.8.8.8:53"},
	{Label: "Google Secondary", Addr: "8.8.4.4:53"},
	{Label: "Cloudflare", Addr: "1.1.1.1:53"},
	{Label: "Quad9", Addr: "9.9.9.9:53"},
	{Label: "OpenDNS Primary", Addr: "208.67.222.222:53"},
	{Label: "OpenDNS Secondary", Addr: "208.67.220.220:53"},
	{Label: "Level3 Primary", Addr: "4.2.2.1:53"},
	{Label: "Level3 Secondary", Addr: "4.2.2.2:53"},
	{Label: "AdGuard", Addr: "94.140.14.14:53"},
	{Label: "Comodo", Addr: "8.26.56.26:53"},
	{Label: "ControlD", Addr: "76.76.2.0:53"},
	{Label: "NextDNS", Addr: "45.90.28.190:53"},
	{Label: "CleanBrowsing", Addr: "185.228.168.9:53"},
	{Label: "Yandex", Addr: "77.88.8.8:53"},
	{Label: "Neustar", Addr: "156.154.70.1:53"},
	{Label: "Mullvad", Addr: "194.242.2.2:53"},
	{Label: "Hurricane Electric", Addr: "74.82.42.42:53"},
	{Label: "PuntCAT", Addr: "109.69.8.51:53"},
	{Label: "Verisign Primary", Addr: "64.6.64.6:53"},
	{Label: "Verisign Secondary", Addr: "64.6.65.6:53"},
}

// Exchanger issues one DNS exchange against one server. Injected so tests do
// not hit the network.
type Exchanger interface {
	Exchange(ctx context.Context, msg *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

type udpExchanger struct {
	client *dns.Client
}

func (e *udpExchanger) Exchange(ctx context.Context, msg *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	return e.client.ExchangeContext(ctx, msg, addr)
}

// Reporter runs propagation checks against a table of resolvers.
type Reporter struct {
	servers   []Server
	exchanger Exchanger
	timeout   time.Duration
}

// Options configures a Reporter. Zero values fall back to DefaultServers, a
// plain UDP client, and a 2-second per-server budget.
type Options struct {
	Servers   []Server
	Exchanger Exchanger
	Timeout   time.Duration
}

// New constructs a Reporter.
func New(opts Options) *Reporter {
	if len(opts.Servers) == 0 {
		opts.Servers = DefaultServers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Exchanger == nil {
		opts.Exchanger = &udpExchanger{
			client: &dns.Client{Timeout: opts.Timeout},
		}
	}
	return &Reporter{
		servers:   opts.Servers,
		exchanger: opts.Exchanger,
		timeout:   opts.Timeout,
	}
}

// Run queries every server in the table for domainName's A record and writes
// a tabular report to w. A resolver that errors, times out, or returns no A
// record gets a SERVER DOWN row. Failures never abort the report.
func (r *Reporter) Run(ctx context.Context, domainName string, w io.Writer) error {
	fmt.Fprintf(w, "--- Propagation Test: %s ---\n", domainName)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS/IP\tLATENCY")

	for _, server := range r.servers {
		ip, latency, err := r.queryOne(ctx, domainName, server.Addr)
		if err != nil {
			fmt.Fprintf(tw, "%s\tSERVER DOWN\tN/A\n", server.Label)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2fms\n", server.Label, ip, float64(latency.Microseconds())/1000)
	}

	return tw.Flush()
}

// queryOne issues a single A-record query and returns the first address in
// the answer section.
func (r *Reporter) queryOne(ctx context.Context, domainName, addr string) (string, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domainName), dns.TypeA)

	resp, rtt, err := r.exchanger.Exchange(ctx, msg, addr)
	if err != nil {
		return "", 0, err
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), rtt, nil
		}
	}
	return "", 0, fmt.Errorf("no A record in answer from %s", addr)
}
