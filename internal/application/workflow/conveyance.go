package workflow

import (
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

var seenStates = domainwf.NewStateSet(
	[]domainwf.State{domainwf.StatePending, domainwf.StateSeen},
	domainwf.StateSeen,
)

// conveyanceDefinition declares two independent tracks. Each role marks
// the claim as seen on its own track.
func conveyanceDefinition() *Definition {
	d := newDefinition(entity.RequestTypeConveyance)
	d.Readers = identity.NewRoleSet(identity.RoleHR, identity.RoleAccounts, identity.RoleAdmin)

	hr := d.addTrack(domainwf.TrackHR, seenStates, domainwf.StatePending)
	accounts := d.addTrack(domainwf.TrackAccounts, seenStates, domainwf.StatePending)

	d.permit(hr, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StateSeen,
		identity.RoleHR, seenMerge(func(s *entity.ConveyanceStages, m *entity.SeenMark) { s.HRSeen = m }),
		"Claim marked as seen by HR.")
	d.permit(accounts, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StateSeen,
		identity.RoleAccounts, seenMerge(func(s *entity.ConveyanceStages, m *entity.SeenMark) { s.AccountsSeen = m }),
		"Claim marked as seen by Accounts.")

	return d
}

func seenMerge(set func(*entity.ConveyanceStages, *entity.SeenMark)) MergeFunc {
	return func(req *entity.Request, sc StageContext) (interface{}, error) {
		s, err := stagesOf[*entity.ConveyanceStages](req)
		if err != nil {
			return nil, err
		}
		m := &entity.SeenMark{By: sc.Actor.UserID, At: sc.Now}
		set(s, m)
		return m, nil
	}
}
