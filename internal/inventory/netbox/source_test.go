package netbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves a two-page ip-address listing, a service listing
// and single ip lookups.
func newTestServer(t *testing.T, ipLookups *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ipam/ip-addresses/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"detail":"Invalid token"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/ipam/ip-addresses/7/":
			atomic.AddInt32(ipLookups, 1)
			fmt.Fprint(w, `{"id":7,"address":"10.0.0.7/24","dns_name":"ldap1.example.org"}`)
			return
		case "/api/ipam/ip-addresses/":
		default:
			http.NotFound(w, r)
			return
		}

		if r.URL.Query().Get("offset") == "" {
			next := fmt.Sprintf("http://%s/api/ipam/ip-addresses/?limit=2&offset=2", r.Host)
			fmt.Fprintf(w, `{"count":3,"next":%q,"results":[
				{"id":1,"address":"10.0.0.1/24","dns_name":"host1.example.org",
				 "assigned_object_type":"dcim.interface",
				 "assigned_object":{"id":10,"display":"eth0","url":"http://nb/if/10/",
				   "device":{"id":100,"display":"srv1","url":"http://nb/dcim/devices/100/"}}},
				{"id":2,"address":"2001:db8::2/64","dns_name":""}
			]}`, next)
			return
		}
		fmt.Fprint(w, `{"count":3,"next":null,"results":[
			{"id":3,"address":"garbage","dns_name":"bad.example.org"}
		]}`)
	})
	mux.HandleFunc("/api/ipam/services/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "ldap" {
			t.Errorf("expected name filter ldap, got %q", got)
		}
		fmt.Fprint(w, `{"count":2,"next":null,"results":[
			{"id":50,"name":"ldap","display":"ldap (TCP/389)","url":"http://nb/svc/50/","ports":[389],
			 "ipaddresses":[{"id":7,"address":"10.0.0.7/24"}]},
			{"id":51,"name":"ldap","display":"ldap (TCP/636)","url":"http://nb/svc/51/","ports":[636],
			 "ipaddresses":[{"id":7,"address":"10.0.0.7/24"}]}
		]}`)
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"netbox-version":"4.0.0"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSource_IPAddresses(t *testing.T) {
	var lookups int32
	server := newTestServer(t, &lookups)

	client := NewClient(server.URL+"/", "secret", WithPageSize(2), WithLogger(quietLogger()))
	src := NewSource(client, quietLogger())

	ips, err := src.IPAddresses(context.Background())
	if err != nil {
		t.Fatalf("IPAddresses: %v", err)
	}

	// The unparseable third entry is dropped.
	if len(ips) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(ips))
	}

	if ips[0].Address.String() != "10.0.0.1" || ips[0].DNSName != "host1.example.org" {
		t.Errorf("unexpected first address: %+v", ips[0])
	}
	if got := ips[0].Owner(); got != "device srv1 @ http://nb/dcim/devices/100/" {
		t.Errorf("unexpected owner %q", got)
	}
	if ips[1].Address.String() != "2001:db8::2" || ips[1].Assigned != nil {
		t.Errorf("unexpected second address: %+v", ips[1])
	}
}

func TestSource_Services(t *testing.T) {
	var lookups int32
	server := newTestServer(t, &lookups)

	src := NewSource(NewClient(server.URL, "secret", WithLogger(quietLogger())), quietLogger())

	services, err := src.Services(context.Background(), "ldap")
	if err != nil {
		t.Fatalf("Services: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(services))
	}

	for _, svc := range services {
		if len(svc.IPAddresses) != 1 || svc.IPAddresses[0].DNSName != "ldap1.example.org" {
			t.Errorf("service %d: expected resolved dns name, got %+v", svc.ID, svc.IPAddresses)
		}
	}
	if services[1].Ports[0] != 636 {
		t.Errorf("expected port 636, got %v", services[1].Ports)
	}

	// The shared nested address is fetched once.
	if lookups != 1 {
		t.Errorf("expected 1 ip lookup, got %d", lookups)
	}
}

func TestClient_BadToken(t *testing.T) {
	var lookups int32
	server := newTestServer(t, &lookups)

	src := NewSource(NewClient(server.URL, "wrong", WithLogger(quietLogger())), quietLogger())

	_, err := src.IPAddresses(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", se.StatusCode)
	}
}

func TestClient_Ping(t *testing.T) {
	var lookups int32
	server := newTestServer(t, &lookups)

	if err := NewClient(server.URL, "secret").Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	server.Close()
	if err := NewClient(server.URL, "secret").Ping(context.Background()); err == nil {
		t.Error("expected ping error against closed server")
	}
}

func TestClient_Options(t *testing.T) {
	var gotUA, gotAuth string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	// Self-signed certificate needs TLS verification disabled.
	if err := NewClient(server.URL, "secret").Ping(context.Background()); err == nil {
		t.Error("expected certificate error with verification enabled")
	}

	c := NewClient(server.URL+"/", "secret",
		WithTLSSkipVerify(true),
		WithTimeout(2*time.Second),
		WithUserAgent("netbox-dns-handler/test"),
		WithPageSize(0),
	)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if gotUA != "netbox-dns-handler/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAuth != "Token secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if c.httpClient.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v", c.httpClient.Timeout)
	}
	if c.pageSize != DefaultPageSize {
		t.Errorf("page size %d, want default %d", c.pageSize, DefaultPageSize)
	}
}
