package mcptools

import "github.com/dusk-indust/esimctl/internal/esim"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// ListProfilesInput is the input for the list_profiles MCP tool.
type ListProfilesInput struct{}

// ListProfilesOutput is the result of the list_profiles MCP tool.
type ListProfilesOutput struct {
	Profiles []esim.Profile `json:"profiles"`
	Count    int            `json:"count"`
}

// GetActiveProfileInput is the input for the get_active_profile MCP tool.
type GetActiveProfileInput struct{}

// GetActiveProfileOutput is the result of the get_active_profile MCP tool.
type GetActiveProfileOutput struct {
	Active  bool          `json:"active"`
	Profile *esim.Profile `json:"profile,omitempty"`
}

// SwitchProfileInput is the input for the switch_profile MCP tool.
type SwitchProfileInput struct {
	SubscriptionID int `json:"subscriptionId" jsonschema:"subscription id of the embedded profile to activate, as reported by list_profiles"`
}

// SwitchProfileOutput is the result of the switch_profile MCP tool.
type SwitchProfileOutput struct {
	Success  bool           `json:"success"`
	Outcome  string         `json:"outcome"`
	Strategy string         `json:"strategy,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Joined   bool           `json:"joined,omitempty"`
	Profiles []esim.Profile `json:"profiles"`
}
