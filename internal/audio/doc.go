// Package audio provides sound playback for soundpind.
// It uses the beep library to decode WAV, OGG, and MP3 files and hands out
// stoppable playback handles that mix onto a shared speaker.
package audio
