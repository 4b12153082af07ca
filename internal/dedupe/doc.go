// Package dedupe tracks recently seen event IDs so a transport can drop
// redeliveries, such as the timeline replay after a sync restart.
package dedupe
