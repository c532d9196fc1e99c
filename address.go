package client

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gridcore/client/internal/proto"
)

// Address identifies a cluster endpoint, both as the key used by the
// member registry and as a field embedded in some request payloads.
type Address struct {
	Host string
	Port uint32
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

func (a Address) toProto() proto.Address {
	return proto.Address{Host: a.Host, Port: a.Port}
}

func addressFromProto(a proto.Address) Address {
	return Address{Host: a.Host, Port: a.Port}
}

// parseEndpoint parses a "host:port" seed endpoint string.
func parseEndpoint(endpoint string) (Address, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return Address{}, fmt.Errorf("client: invalid endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("client: invalid port in endpoint %q: %w", endpoint, err)
	}
	return Address{Host: host, Port: uint32(port)}, nil
}

// AuthStatus is the authentication status code reported on connect.
type AuthStatus = proto.AuthenticationStatus
