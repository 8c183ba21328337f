package audio

// Handle controls a single playback. It is created ready to play and is
// owned by whoever created it, or by the registry entry it is stored under.
type Handle interface {
	Start() error
	Stop()
}
