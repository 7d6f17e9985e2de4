package enums

import "slices"

// AgentRole scopes what a control API caller may touch.
type AgentRole string

const (
	// AgentRoleCollaborator acts only on its own employee's queue and feed.
	AgentRoleCollaborator AgentRole = "collaborator"
	// AgentRoleGateway is a rig gateway relaying for any employee on board.
	AgentRoleGateway AgentRole = "gateway"
)

func (r AgentRole) IsValid() bool {
	return slices.Contains([]AgentRole{AgentRoleCollaborator, AgentRoleGateway}, r)
}
