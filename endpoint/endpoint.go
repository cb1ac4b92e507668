// Package endpoint resolves service descriptors to host and port pairs from
// a TOML endpoint table:
//
//	[services.quotes]
//	host = "quotes.internal"
//	port = 7701
//
// Every failure (unknown descriptor, malformed port, unresolvable host, bad
// table) wraps errs.ErrConfiguration.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/internal/options"
)

// Port is a port as written in the table. It accepts TOML integers and strings
// and is validated on resolution.
type Port string

// UnmarshalTOML implements toml.Unmarshaler.
func (p *Port) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		*p = Port(strconv.FormatInt(x, 10))
	case string:
		*p = Port(strings.TrimSpace(x))
	default:
		return fmt.Errorf("port must be an integer or a string, got %T", v)
	}

	return nil
}

// Service is one table entry.
type Service struct {
	Host string `toml:"host"`
	Port Port   `toml:"port"`
}

// Table maps descriptors to services.
type Table struct {
	Services map[string]Service `toml:"services"`
}

// Load decodes the endpoint table at path. Unknown keys are rejected.
func Load(path string) (Table, error) {
	var t Table
	meta, err := toml.DecodeFile(path, &t)
	if err != nil {
		return Table{}, fmt.Errorf("%w: load endpoint table: %w", errs.ErrConfiguration, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Table{}, fmt.Errorf("%w: unknown endpoint table key %q", errs.ErrConfiguration, undecoded[0].String())
	}

	return t, nil
}

// Parse decodes an endpoint table from TOML text.
func Parse(data string) (Table, error) {
	var t Table
	meta, err := toml.Decode(data, &t)
	if err != nil {
		return Table{}, fmt.Errorf("%w: parse endpoint table: %w", errs.ErrConfiguration, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Table{}, fmt.Errorf("%w: unknown endpoint table key %q", errs.ErrConfiguration, undecoded[0].String())
	}

	return t, nil
}

// Endpoint is a resolved service address.
type Endpoint struct {
	Service string
	Host    string // resolved address
	Port    int
}

// Address returns host:port suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

type config struct {
	lookup LookupFunc
}

// Option configures a Resolver.
type Option = options.Option[*config]

// WithLookup replaces the host lookup, net.DefaultResolver.LookupHost by default.
func WithLookup(fn LookupFunc) Option {
	return options.NoError(func(c *config) {
		if fn != nil {
			c.lookup = fn
		}
	})
}

// Resolver resolves descriptors against a table.
type Resolver struct {
	table  Table
	lookup LookupFunc
}

// NewResolver creates a resolver over table.
func NewResolver(table Table, opts ...Option) *Resolver {
	cfg := config{lookup: net.DefaultResolver.LookupHost}
	_ = options.Apply(&cfg, opts...)

	return &Resolver{table: table, lookup: cfg.lookup}
}

// Resolve returns the endpoint of descriptor. Literal IP hosts are returned
// as is; names resolve to their first address.
func (r *Resolver) Resolve(ctx context.Context, descriptor string) (Endpoint, error) {
	svc, ok := r.table.Services[descriptor]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: unknown service descriptor %q", errs.ErrConfiguration, descriptor)
	}

	port, err := strconv.Atoi(string(svc.Port))
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: service %q has malformed port %q", errs.ErrConfiguration, descriptor, svc.Port)
	}

	host := strings.TrimSpace(svc.Host)
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: service %q has no host", errs.ErrConfiguration, descriptor)
	}
	if ip := net.ParseIP(host); ip == nil {
		addrs, err := r.lookup(ctx, host)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: resolve host %q of service %q: %w",
				errs.ErrConfiguration, host, descriptor, err)
		}
		if len(addrs) == 0 {
			return Endpoint{}, fmt.Errorf("%w: host %q of service %q has no addresses",
				errs.ErrConfiguration, host, descriptor)
		}
		host = addrs[0]
	}

	return Endpoint{Service: descriptor, Host: host, Port: port}, nil
}
