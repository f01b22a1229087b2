package monitor

import (
	"github.com/cyclopcam/edgeclassify/pkg/gen"
)

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Register to receive every cycle record.
// The channel is closed when the monitor is closed.
func (m *Monitor) AddWatcher() chan *CycleRecord {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *CycleRecord, WatcherChannelSize)
	m.watchers = append(m.watchers, ch)
	return ch
}

// Unregister a watcher
func (m *Monitor) RemoveWatcher(ch chan *CycleRecord) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers {
		if w == ch {
			m.watchers[i] = m.watchers[len(m.watchers)-1]
			m.watchers = m.watchers[:len(m.watchers)-1]
			return
		}
	}
	m.Log.Warnf("RemoveWatcher failed to find channel")
}

func (m *Monitor) sendToWatchers(rec *CycleRecord) {
	m.watchersLock.RLock()
	defer m.watchersLock.RUnlock()
	// A stalled watcher must not stall the cycle loop, so we drop records instead
	for _, ch := range m.watchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 || !gen.TrySend(ch, rec) {
			m.errLimiter.Errorf("Watcher is falling behind. Dropping cycle records.")
		}
	}
}
