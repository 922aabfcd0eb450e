package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allRoles = []Role{RoleClient, RoleProvider, RoleOwner}

func actionNames(actions []Action) []string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	return names
}

func TestAvailableActions_TerminalStatusesHaveNone(t *testing.T) {
	terminals := []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled}
	for _, status := range terminals {
		for _, role := range allRoles {
			assert.Empty(t, AvailableActions(status, role),
				"status %s role %s must have no actions", status, role)
		}
	}
}

func TestAvailableActions_Requested(t *testing.T) {
	for _, role := range []Role{RoleProvider, RoleOwner} {
		actions := AvailableActions(StatusRequested, role)
		assert.ElementsMatch(t, []string{ActionConfirm, ActionCancel}, actionNames(actions))
		for _, a := range actions {
			assert.False(t, a.RequiresReason, "action %s from requested should not require a reason", a.Name)
		}
	}

	clientActions := AvailableActions(StatusRequested, RoleClient)
	assert.Equal(t, []string{ActionCancel}, actionNames(clientActions))
}

func TestAvailableActions_Confirmed_RoleGating(t *testing.T) {
	// A client never sees staff-only actions from confirmed.
	clientActions := AvailableActions(StatusConfirmed, RoleClient)
	assert.Equal(t, []string{ActionCancel}, actionNames(clientActions))
	assert.False(t, clientActions[0].RequiresReason)

	for _, role := range []Role{RoleProvider, RoleOwner} {
		actions := AvailableActions(StatusConfirmed, role)
		assert.ElementsMatch(t,
			[]string{ActionStart, ActionCancel, ActionMarkNoShow, ActionReschedule},
			actionNames(actions))
	}
}

func TestAvailableActions_Confirmed_ReasonFlags(t *testing.T) {
	for _, a := range AvailableActions(StatusConfirmed, RoleProvider) {
		switch a.Name {
		case ActionCancel, ActionMarkNoShow:
			assert.True(t, a.RequiresReason, "%s must require a reason", a.Name)
		default:
			assert.False(t, a.RequiresReason, "%s must not require a reason", a.Name)
		}
	}
}

func TestAvailableActions_InProgress(t *testing.T) {
	for _, role := range []Role{RoleProvider, RoleOwner} {
		actions := AvailableActions(StatusInProgress, role)
		assert.Equal(t, []string{ActionComplete}, actionNames(actions))
		assert.Equal(t, StatusCompleted, actions[0].Target)
	}

	assert.Empty(t, AvailableActions(StatusInProgress, RoleClient))
}

func TestAvailableActions_UnknownInputsYieldEmpty(t *testing.T) {
	assert.Empty(t, AvailableActions(Status("bogus"), RoleClient))
	assert.Empty(t, AvailableActions(StatusRequested, Role("admin")))
	assert.Empty(t, AvailableActions(Status(""), Role("")))
}

func TestAvailableActions_Targets(t *testing.T) {
	cases := []struct {
		status Status
		role   Role
		action string
		target Status
	}{
		{StatusRequested, RoleProvider, ActionConfirm, StatusConfirmed},
		{StatusRequested, RoleClient, ActionCancel, StatusCancelled},
		{StatusConfirmed, RoleOwner, ActionStart, StatusInProgress},
		{StatusConfirmed, RoleProvider, ActionMarkNoShow, StatusNoShow},
		{StatusConfirmed, RoleProvider, ActionReschedule, StatusRescheduled},
		{StatusInProgress, RoleOwner, ActionComplete, StatusCompleted},
	}
	for _, tc := range cases {
		a, ok := FindAction(tc.status, tc.role, tc.action)
		assert.True(t, ok, "%s as %s from %s", tc.action, tc.role, tc.status)
		assert.Equal(t, tc.target, a.Target)
	}
}

func TestFindAction_NotPermitted(t *testing.T) {
	_, ok := FindAction(StatusConfirmed, RoleClient, ActionStart)
	assert.False(t, ok)

	_, ok = FindAction(StatusCompleted, RoleOwner, ActionCancel)
	assert.False(t, ok)
}
