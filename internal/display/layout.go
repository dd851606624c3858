package display

import "codeberg.org/mutker/refreshd/internal/errors"

// BuildLayout derives a full logical-monitor layout from snapshot in which
// target uses mode and every other member keeps its current mode. Position,
// scale, transform and primary flag of each logical monitor are copied.
func BuildLayout(snapshot *Snapshot, target Connector, mode Mode) (*Layout, error) {
	errFactory := errors.New()

	targetMonitor := snapshot.Monitor(target)
	if targetMonitor == nil {
		return nil, newNotFound(NotFoundMonitor, target, mode.RoundedRate())
	}
	if !targetMonitor.HasMode(mode.ID) {
		return nil, errFactory.WithData(ErrInvalidLayout, struct {
			Connector Connector
			ModeID    string
		}{target, mode.ID})
	}

	layout := &Layout{
		Serial:   snapshot.Serial,
		Monitors: make([]LayoutMonitor, 0, len(snapshot.LogicalMonitors)),
	}

	found := false
	for _, lm := range snapshot.LogicalMonitors {
		out := LayoutMonitor{
			X:         lm.X,
			Y:         lm.Y,
			Scale:     lm.Scale,
			Transform: lm.Transform,
			Primary:   lm.Primary,
			Members:   make([]LayoutMember, 0, len(lm.Monitors)),
		}

		for _, spec := range lm.Monitors {
			if spec.Connector == target {
				found = true
				out.Members = append(out.Members, LayoutMember{Connector: target, ModeID: mode.ID})
				continue
			}

			monitor := snapshot.Monitor(spec.Connector)
			if monitor == nil || len(monitor.Modes) == 0 {
				return nil, errFactory.WithData(ErrInvalidLayout, struct {
					Connector Connector
					Reason    string
				}{spec.Connector, "logical monitor member has no modes in snapshot"})
			}

			current, flagged := monitor.CurrentMode()
			if !flagged {
				layout.Guessed = append(layout.Guessed, spec.Connector)
			}
			out.Members = append(out.Members, LayoutMember{Connector: spec.Connector, ModeID: current.ID})
		}

		layout.Monitors = append(layout.Monitors, out)
	}

	if !found {
		return nil, newNotFound(NotFoundLogicalMonitor, target, mode.RoundedRate())
	}

	return layout, nil
}
