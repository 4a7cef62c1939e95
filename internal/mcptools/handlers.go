package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/esimctl/internal/service"
)

// ProfileTools adapts a profile service to MCP tool handlers.
type ProfileTools struct {
	svc *service.Service
}

// NewProfileTools creates ProfileTools backed by svc.
func NewProfileTools(svc *service.Service) *ProfileTools {
	return &ProfileTools{svc: svc}
}

// ListProfiles discovers the host's embedded profiles.
func (t *ProfileTools) ListProfiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListProfilesInput,
) (*mcp.CallToolResult, ListProfilesOutput, error) {
	profiles := t.svc.Profiles(ctx)
	return nil, ListProfilesOutput{Profiles: nonNil(profiles), Count: len(profiles)}, nil
}

// GetActiveProfile reports the active embedded profile, if any.
func (t *ProfileTools) GetActiveProfile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GetActiveProfileInput,
) (*mcp.CallToolResult, GetActiveProfileOutput, error) {
	p, ok := t.svc.Active(ctx)
	if !ok {
		return nil, GetActiveProfileOutput{}, nil
	}
	return nil, GetActiveProfileOutput{Active: true, Profile: &p}, nil
}

// SwitchProfile activates a profile and waits for verification. A failed
// activation is a normal result; only caller mistakes are tool errors.
func (t *ProfileTools) SwitchProfile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SwitchProfileInput,
) (*mcp.CallToolResult, SwitchProfileOutput, error) {
	res, err := t.svc.Switch(ctx, input.SubscriptionID)
	if err != nil {
		return nil, SwitchProfileOutput{}, fmt.Errorf("switch_profile: %w", err)
	}
	return nil, SwitchProfileOutput{
		Success:  res.Attempt.Success(),
		Outcome:  string(res.Attempt.Outcome),
		Strategy: res.Attempt.Strategy,
		Reason:   res.Attempt.Reason,
		Joined:   res.Joined,
		Profiles: nonNil(res.Profiles),
	}, nil
}
