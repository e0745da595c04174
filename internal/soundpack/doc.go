// Package soundpack loads a sound pack from disk: a config.yml cue tree
// mapping event keys to cue-line templates, plus the WAV and MP3 clips the
// templates reference. Packs can be reloaded while the announcer runs.
package soundpack
