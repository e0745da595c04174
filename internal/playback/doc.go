// Package playback schedules cue lines on an audio output. Queued lines
// play one after another from a bounded queue that sheds its oldest
// entries; an immediate slot lets a whistle pre-empt the next queued line.
package playback
