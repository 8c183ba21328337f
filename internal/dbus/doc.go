// Package dbus exposes soundpind on the session bus.
// It provides the io.github.jmylchreest.Soundpin service with Configure,
// PlaySound, StopSound and Status methods, a client for calling it, and a
// monitor that plays the sounds named by freedesktop notifications.
package dbus
