// Package timer provides the recurring and one-shot subscriptions that
// drive timed autoscans and the deferred verification pass after a
// change-notification autoscan is registered.
package timer
