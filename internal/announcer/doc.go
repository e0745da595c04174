// Package announcer wires the referee and vision feeds to the cue
// pipeline: the first valid referee snapshot seeds the tracker, every later
// one is diffed, and the resulting requests are resolved against the sound
// pack and handed to the playback scheduler. Vision packets only update the
// field size used for placement classification.
package announcer
