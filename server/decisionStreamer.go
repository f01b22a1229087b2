package server

import (
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/gen"
	"github.com/cyclopcam/edgeclassify/server/monitor"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
)

type webSocketMsg int

const (
	webSocketMsgClosed webSocketMsg = iota // The websocket client has closed the channel
)

// Number of cycle records that we will buffer on the send side, before dropping records to the client.
const WebSocketSendBufferSize = 4

// DecisionStreamer pushes cycle records to a websocket client as JSON.
// A client that falls behind only receives the most recent record.
type DecisionStreamer struct {
	log           logs.Log
	fromWebSocket chan webSocketMsg
	sendQueue     chan *monitor.CycleRecord
	lastDropMsg   time.Time
	nDropped      int64
	nSent         int64
	debug         bool
}

func NewDecisionStreamer(log logs.Log) *DecisionStreamer {
	return &DecisionStreamer{
		log:           log,
		fromWebSocket: make(chan webSocketMsg, 1),
		sendQueue:     make(chan *monitor.CycleRecord, WebSocketSendBufferSize),
	}
}

// Run until either the websocket client or the monitor goes away
func (s *DecisionStreamer) Run(conn *websocket.Conn, mon *monitor.Monitor) {
	incoming := mon.AddWatcher()

	go s.webSocketReader(conn)
	go s.webSocketWriter(conn)

	monitorClosed := false
	closed := false
	for !closed {
		select {
		case rec, ok := <-incoming:
			if !ok {
				monitorClosed = true
				closed = true
				break
			}
			// Skip straight to the newest record
			backlog := gen.DrainChannelIntoSlice(incoming)
			if len(backlog) != 0 {
				s.onDropped(int64(len(backlog)))
				rec = backlog[len(backlog)-1]
			}
			if gen.TrySend(s.sendQueue, rec) {
				s.nSent++
			} else {
				s.onDropped(1)
			}
		case <-s.fromWebSocket:
			if s.debug {
				s.log.Infof("DecisionStreamer.Run webSocketMsgClosed")
			}
			closed = true
		}
	}
	if !monitorClosed {
		mon.RemoveWatcher(incoming)
	}
	close(s.sendQueue)
	// should perhaps use WriteControl(Close) instead of hard closing
	conn.Close()
}

func (s *DecisionStreamer) onDropped(n int64) {
	s.nDropped += n
	now := time.Now()
	if now.Sub(s.lastDropMsg) > 5*time.Second {
		s.log.Infof("Dropped %v/%v cycle records to websocket connection", s.nDropped, s.nDropped+s.nSent)
		s.lastDropMsg = now
	}
}

// Read from the websocket and post to our own channel, so that we can
// run a single loop that handles reads from websocket and reads from the monitor.
func (s *DecisionStreamer) webSocketReader(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if s.debug {
				s.log.Infof("DecisionStreamer.webSocketReader conn.ReadMessage error: %v", err)
			}
			break
		}
	}
	s.fromWebSocket <- webSocketMsgClosed
}

// Write on a separate goroutine so that a slow client doesn't block the monitor
func (s *DecisionStreamer) webSocketWriter(conn *websocket.Conn) {
	for rec := range s.sendQueue {
		if err := conn.WriteJSON(rec); err != nil {
			s.log.Infof("Error writing to websocket: %v", err)
			break
		}
	}
}
