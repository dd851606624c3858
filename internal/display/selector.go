package display

// SelectMode returns the first mode of connector's monitor whose refresh
// rate rounds to hz. Modes are scanned in snapshot order.
func SelectMode(snapshot *Snapshot, connector Connector, hz int) (Mode, error) {
	monitor := snapshot.Monitor(connector)
	if monitor == nil {
		return Mode{}, newNotFound(NotFoundMonitor, connector, hz)
	}

	for _, mode := range monitor.Modes {
		if mode.RoundedRate() == hz {
			return mode, nil
		}
	}

	return Mode{}, newNotFound(NotFoundMode, connector, hz)
}
