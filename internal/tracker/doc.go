// Package tracker follows the authoritative game state from successive
// referee snapshots and reports each change as a cue request.
package tracker
