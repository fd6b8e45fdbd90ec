// Package delivery pushes stored notifications to connected WebSocket
// clients.
//
// Hub tracks live connections per user. Worker drains pending push
// deliveries from storage, hands them to the hub, and records the outcome
// with bounded retries. Feed delivery never depends on this package.
package delivery
