// Package audio provides clip decoding and cross-platform playback of
// short PCM clips using oto/v3 or PortAudio. It handles format conversion,
// interruptible playback handles, and device management.
package audio
