package main

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/esimctl/internal/hostrpc"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// openHost resolves a host spec: "sim:<fixture.yml>" for the simulated
// host, or an http(s) URL for a remote JSON-RPC host.
func openHost(spec string) (telephony.Host, error) {
	switch {
	case strings.HasPrefix(spec, "sim:"):
		path := strings.TrimPrefix(spec, "sim:")
		if path == "" {
			return nil, fmt.Errorf("host %q: missing fixture path", spec)
		}
		return telephony.NewSimHostFromFile(path)
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return hostrpc.NewClient(spec), nil
	default:
		return nil, fmt.Errorf("host %q: want sim:<fixture.yml> or an http(s) URL", spec)
	}
}
