package booking

// Action is one legal transition offered to an actor for the current
// appointment status. The UI renders Label; the update path matches on
// Name and Target.
type Action struct {
	Name           string `json:"action"`
	Target         Status `json:"target_status"`
	Label          string `json:"label"`
	RequiresReason bool   `json:"requires_reason"`
}

const (
	ActionConfirm    = "confirm"
	ActionCancel     = "cancel"
	ActionStart      = "start"
	ActionComplete   = "complete"
	ActionMarkNoShow = "mark_no_show"
	ActionReschedule = "reschedule"
)

// AvailableActions returns the legal transitions for the given status
// and role. It is pure and advisory: terminal statuses and unknown
// combinations yield an empty slice, never an error. Enforcement
// happens in Service.UpdateStatus.
func AvailableActions(status Status, role Role) []Action {
	if status.IsTerminal() {
		return nil
	}

	staff := role == RoleProvider || role == RoleOwner

	switch status {
	case StatusRequested:
		if staff {
			return []Action{
				{Name: ActionConfirm, Target: StatusConfirmed, Label: "Confirm"},
				{Name: ActionCancel, Target: StatusCancelled, Label: "Decline"},
			}
		}
		if role == RoleClient {
			return []Action{
				{Name: ActionCancel, Target: StatusCancelled, Label: "Cancel request"},
			}
		}
	case StatusConfirmed:
		if staff {
			return []Action{
				{Name: ActionStart, Target: StatusInProgress, Label: "Start"},
				{Name: ActionCancel, Target: StatusCancelled, Label: "Cancel", RequiresReason: true},
				{Name: ActionMarkNoShow, Target: StatusNoShow, Label: "Mark no-show", RequiresReason: true},
				{Name: ActionReschedule, Target: StatusRescheduled, Label: "Reschedule"},
			}
		}
		if role == RoleClient {
			return []Action{
				{Name: ActionCancel, Target: StatusCancelled, Label: "Cancel"},
			}
		}
	case StatusInProgress:
		if staff {
			return []Action{
				{Name: ActionComplete, Target: StatusCompleted, Label: "Complete"},
			}
		}
	}

	return nil
}

// FindAction looks up a named action in the legal set for the given
// status and role. The second return is false when the transition is
// not permitted.
func FindAction(status Status, role Role, name string) (Action, bool) {
	for _, a := range AvailableActions(status, role) {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
