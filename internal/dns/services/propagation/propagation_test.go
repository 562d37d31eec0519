package propagation

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExchanger answers from a canned table keyed by server address.
type fakeExchanger struct {
	answers map[string]string // addr -> ip; missing addr means error
	asked   []string
}

func (f *fakeExchanger) Exchange(ctx context.Context, msg *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	f.asked = append(f.asked, addr)
	ip, ok := f.answers[addr]
	if !ok {
		return nil, 0, fmt.Errorf("no route to %s", addr)
	}
	resp := new(dns.Msg)
	resp.SetReply(msg)
	resp.Answer = append(resp.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.ParseIP(ip),
	})
	return resp, 12 * time.Millisecond, nil
}

func TestRun_ReportsAnswersAndFailures(t *testing.T) {
	exchanger := &fakeExchanger{answers: map[string]string{
		"192.0.2.1:53": "93.184.216.34",
		// 192.0.2.2 intentionally absent: reported down
		"192.0.2.3:53": "93.184.216.35",
	}}
	reporter := New(Options{
		Servers: []Server{
			{Label: "Alpha", Addr: "192.0.2.1:53"},
			{Label: "Beta", Addr: "192.0.2.2:53"},
			{Label: "Gamma", Addr: "192.0.2.3:53"},
		},
		Exchanger: exchanger,
	})

	var out bytes.Buffer
	err := reporter.Run(context.Background(), "example.com", &out)
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Propagation Test: example.com")
	assert.Contains(t, report, "93.184.216.34")
	assert.Contains(t, report, "12.00ms")
	assert.Contains(t, report, "SERVER DOWN")
	assert.Contains(t, report, "93.184.216.35")

	// Every configured server is asked exactly once, failures included.
	assert.Equal(t, []string{"192.0.2.1:53", "192.0.2.2:53", "192.0.2.3:53"}, exchanger.asked)
}

func TestRun_NoARecordIsDown(t *testing.T) {
	exchanger := &fakeExchanger{answers: map[string]string{}}
	reporter := New(Options{
		Servers:   []Server{{Label: "Empty", Addr: "192.0.2.9:53"}},
		Exchanger: exchanger,
	})

	var out bytes.Buffer
	require.NoError(t, reporter.Run(context.Background(), "example.com", &out))
	assert.Contains(t, out.String(), "SERVER DOWN")
}

func TestNew_Defaults(t *testing.T) {
	r := New(Options{})
	assert.Len(t, r.servers, 20)
	assert.Equal(t, defaultTimeout, r.timeout)
	assert.NotNil(t, r.exchanger)
}

func TestDefaultServers_AllHavePorts(t *testing.T) {
	for _, s := range DefaultServers {
		_, port, err := net.SplitHostPort(s.Addr)
		require.NoError(t, err, s.Label)
		assert.Equal(t, "53", port)
	}
}
