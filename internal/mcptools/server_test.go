package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/esimctl/internal/esim"
	"github.com/dusk-indust/esimctl/internal/service"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

func newService(t *testing.T) (*service.Service, *telephony.SimHost) {
	t.Helper()
	host, err := telephony.NewSimHost(telephony.Fixture{
		Level: "switching",
		Subscriptions: []telephony.SimSubscription{
			{SubscriptionInfo: telephony.SubscriptionInfo{SubscriptionID: 10, DisplayName: telephony.StringPtr("Home"), Embedded: true}, Active: true},
			{SubscriptionInfo: telephony.SubscriptionInfo{SubscriptionID: 11, DisplayName: telephony.StringPtr("Travel"), Embedded: true}},
		},
	})
	require.NoError(t, err)
	svc := service.New(host, service.WithEngineOptions(esim.WithDelays(esim.Delays{Switch: 10 * time.Millisecond})))
	return svc, host
}

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T) (*mcp.ClientSession, *telephony.SimHost) {
	t.Helper()

	svc, host := newService(t)
	server := NewProfileMCPServer(svc)

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})

	return session, host
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, result.StructuredContent)
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCPListTools(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"get_active_profile", "list_profiles", "switch_profile"}, names)
}

func TestMCPListProfiles(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_profiles",
		Arguments: ListProfilesInput{},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[ListProfilesOutput](t, result)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "Home", out.Profiles[0].DisplayName)
	assert.True(t, out.Profiles[0].Active)
}

func TestMCPSwitchProfile(t *testing.T) {
	session, host := setupServerClient(t)
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "switch_profile",
		Arguments: SwitchProfileInput{SubscriptionID: 11},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[SwitchProfileOutput](t, result)
	assert.True(t, out.Success, out.Reason)
	assert.Equal(t, esim.StrategySwitch, out.Strategy)
	assert.Equal(t, 11, host.PrimaryID())

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_active_profile",
		Arguments: GetActiveProfileInput{},
	})
	require.NoError(t, err)
	active := decode[GetActiveProfileOutput](t, result)
	require.True(t, active.Active)
	assert.Equal(t, "Travel", active.Profile.DisplayName)
}

func TestMCPSwitchUnknownProfile(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "switch_profile",
		Arguments: SwitchProfileInput{SubscriptionID: 42},
	})
	// The SDK reports handler errors as tool errors rather than protocol
	// errors.
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestProfileTools_Direct(t *testing.T) {
	svc, host := newService(t)
	tools := NewProfileTools(svc)
	ctx := context.Background()

	host.SetMode(telephony.OpActiveSubscriptions, telephony.ModeFail)

	_, list, err := tools.ListProfiles(ctx, nil, ListProfilesInput{})
	require.NoError(t, err)
	assert.NotNil(t, list.Profiles)
	assert.Zero(t, list.Count)

	_, active, err := tools.GetActiveProfile(ctx, nil, GetActiveProfileInput{})
	require.NoError(t, err)
	assert.False(t, active.Active)
	assert.Nil(t, active.Profile)

	_, _, err = tools.SwitchProfile(ctx, nil, SwitchProfileInput{SubscriptionID: 11})
	assert.ErrorIs(t, err, service.ErrUnknownProfile)
}
