// Package daemon provides the main orchestration for soundpind.
// It routes configuration, play and stop notifications to the playback
// scheduler and watches the config file until a configuration arrives.
package daemon
