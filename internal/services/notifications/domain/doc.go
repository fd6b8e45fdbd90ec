// Package domain implements the notification store and read tracker.
//
// Notifications are immutable once emitted. A reader's feed merges GLOBAL
// notifications with the ones TARGETED at them, and read state lives in a
// separate insert-only set of (user, notification) marks.
package domain
