// Package ws exposes the realtime registry over WebSocket.
//
// A session speaks a small JSON protocol: the client sends
// {"action":"join","recipientId":"..."} to subscribe to a recipient's
// events (acknowledged with {"type":"joined"}) and
// {"action":"ping"} to probe liveness (answered with {"type":"pong"}).
// The server pushes notify.Event frames for the rooms the session has
// joined plus all global broadcasts. Transport-level ping/pong runs
// underneath the JSON protocol to detect dead peers.
package ws
