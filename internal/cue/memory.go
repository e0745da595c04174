package cue

import (
	"fmt"
	"strings"

	"github.com/robocup-ssl/audioref/internal/audio"
)

// MemoryLibrary is a Library backed by plain maps. Template keys are
// slash-joined paths such as "commands/halt".
type MemoryLibrary struct {
	Tree  map[string][]string
	Clips map[string]*audio.Clip
}

// NewMemoryLibrary creates a library and registers a silent clip for every
// token used in the tree that is not a team placeholder.
func NewMemoryLibrary(tree map[string][]string) *MemoryLibrary {
	lib := &MemoryLibrary{
		Tree:  tree,
		Clips: make(map[string]*audio.Clip),
	}
	for _, templates := range tree {
		for _, tpl := range templates {
			for _, tok := range strings.Fields(tpl) {
				switch tok {
				case TokenTeam, TokenYellow, TokenBlue:
					continue
				}
				if _, ok := lib.Clips[tok]; !ok {
					lib.Clips[tok] = &audio.Clip{Name: tok}
				}
			}
		}
	}
	return lib
}

func (m *MemoryLibrary) Templates(path ...string) ([]string, error) {
	key := strings.Join(path, "/")
	templates, ok := m.Tree[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return templates, nil
}

func (m *MemoryLibrary) Clip(name string) (*audio.Clip, error) {
	clip, ok := m.Clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: clip %s", ErrNotFound, name)
	}
	return clip, nil
}
