package mqttbridge

import (
	"time"

	"github.com/google/uuid"
)

// Command names, used as the last topic segment and in CommandMessage.
const (
	CommandGetManagerProperties  = "get_manager_properties"
	CommandRequestProperties     = "request_properties"
	CommandRequestScan           = "request_scan"
	CommandSetTechnologyEnabled  = "set_technology_enabled"
	CommandSetCheckPortalList    = "set_check_portal_list"
	CommandConnectToBestServices = "connect_to_best_services"
)

// CommandMessage is sent to the provider bridge.
// Topic: netstate/command/{source}/{command}
type CommandMessage struct {
	// ID correlates the command with its AckMessage.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	Command string `json:"command"`

	// Parameters contains command-specific values, e.g.
	// {"technology": "wifi", "enabled": true}.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// NewCommandMessage creates a command with a fresh ID.
func NewCommandMessage(command string, params map[string]any) CommandMessage {
	return CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Command:    command,
		Parameters: params,
	}
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: netstate/provider/{source}/ack
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command,omitempty"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError carries details for failed and timed out commands.
type AckError struct {
	// Code is the provider's error name, e.g. "org.chromium.flimflam.Error.NotSupported".
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListMessage replaces the path list of one kind.
// Topic: netstate/provider/{source}/list/{kind}
type ListMessage struct {
	Paths []string `json:"paths"`
}

// PropertiesMessage is a full property snapshot.
// Topic: netstate/provider/{source}/properties/{kind}
type PropertiesMessage struct {
	Path       string         `json:"path"`
	Properties map[string]any `json:"properties"`
}

// PropertyMessage is a single property change.
// Topic: netstate/provider/{source}/property/{kind}
type PropertyMessage struct {
	Path  string `json:"path"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ManagerMessage carries manager state. Absent fields leave the previous
// value in place.
// Topic: netstate/provider/{source}/manager
type ManagerMessage struct {
	AvailableTechnologies     *[]string `json:"available_technologies,omitempty"`
	EnabledTechnologies       *[]string `json:"enabled_technologies,omitempty"`
	UninitializedTechnologies *[]string `json:"uninitialized_technologies,omitempty"`
	CheckPortalList           *string   `json:"check_portal_list,omitempty"`
	Profiles                  *[]string `json:"profiles,omitempty"`
}
