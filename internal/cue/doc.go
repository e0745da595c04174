// Package cue resolves detected game transitions into lines of audio
// clips: it picks among configured template alternatives, substitutes team
// placeholders, and classifies designated positions into restart types.
package cue
