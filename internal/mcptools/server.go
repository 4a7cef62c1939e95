package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/esimctl/internal/esim"
	"github.com/dusk-indust/esimctl/internal/service"
)

// version is set by the linker at build time.
var version = "dev"

// NewProfileMCPServer creates an MCP server with the profile tools
// registered: list_profiles, get_active_profile and switch_profile.
func NewProfileMCPServer(svc *service.Service) *mcp.Server {
	tools := NewProfileTools(svc)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "esimctl",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_profiles",
		Description: "List the embedded SIM profiles on the device, marking the active one. Physical SIMs are not included.",
	}, tools.ListProfiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_active_profile",
		Description: "Return the embedded SIM profile that currently carries the device's primary subscription, if any.",
	}, tools.GetActiveProfile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "switch_profile",
		Description: "Make an embedded SIM profile active by subscription id. Waits for the device to confirm the change and returns the refreshed profile list.",
	}, tools.SwitchProfile)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func nonNil(profiles []esim.Profile) []esim.Profile {
	if profiles == nil {
		return []esim.Profile{}
	}
	return profiles
}
