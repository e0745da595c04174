package soundpack

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
)

// ConfigFile is the cue tree file at the root of every pack.
const ConfigFile = "config.yml"

// Pack is a loaded sound pack: the flattened cue tree and every decoded
// clip below the pack root.
type Pack struct {
	Root string

	tree  map[string][]string
	clips map[string]*audio.Clip
	size  int
}

// Load reads the pack at root and converts every clip to format.
func Load(root string, format audio.Format) (*Pack, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound pack: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sound pack %s is not a directory", root)
	}

	p, err := LoadFS(os.DirFS(root), format)
	if err != nil {
		return nil, fmt.Errorf("sound pack %s: %w", root, err)
	}
	p.Root = root
	return p, nil
}

// LoadFS reads a pack from fsys.
func LoadFS(fsys fs.FS, format audio.Format) (*Pack, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(fsys, ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}
	tree, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
	}

	p := &Pack{
		tree:  tree,
		clips: make(map[string]*audio.Clip),
	}

	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(path.Ext(name)) {
		case ".wav", ".mp3":
		default:
			return nil
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		clip, err := audio.Decode(name, bytes.NewReader(data), format)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		p.clips[name] = clip
		p.size += len(clip.PCM)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if missing := p.Missing(); len(missing) > 0 {
		log.Warn("Sound pack references missing clips", "count", len(missing), "clips", missing)
	}

	log.Info("Loaded sound pack",
		"cues", len(p.tree),
		"clips", len(p.clips),
		"size", humanize.Bytes(uint64(p.size)))
	return p, nil
}

// parseTree flattens the nested cue tree into slash-joined key paths. A
// leaf is a template string or a list of alternatives.
func parseTree(data []byte) (map[string][]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	tree := make(map[string][]string)
	if len(doc.Content) == 0 {
		return tree, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}
	if err := flatten(root, "", tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func flatten(n *yaml.Node, prefix string, tree map[string][]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "/" + key
			}
			if err := flatten(n.Content[i+1], key, tree); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		alts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: %s: alternatives must be strings", c.Line, prefix)
			}
			alts = append(alts, c.Value)
		}
		tree[prefix] = alts
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		tree[prefix] = []string{n.Value}
	case yaml.AliasNode:
		return flatten(n.Alias, prefix, tree)
	default:
		return fmt.Errorf("line %d: %s: unexpected node", n.Line, prefix)
	}
	return nil
}

// Templates implements cue.Library.
func (p *Pack) Templates(keys ...string) ([]string, error) {
	key := strings.Join(keys, "/")
	alts, ok := p.tree[key]
	if !ok || len(alts) == 0 {
		return nil, fmt.Errorf("%w: %s", cue.ErrNotFound, key)
	}
	return alts, nil
}

// Clip implements cue.Library.
func (p *Pack) Clip(name string) (*audio.Clip, error) {
	clip, ok := p.clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: clip %s", cue.ErrNotFound, name)
	}
	return clip, nil
}

// Keys returns every configured key path, sorted.
func (p *Pack) Keys() []string {
	keys := make([]string, 0, len(p.tree))
	for k := range p.tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clips returns the number of decoded clips.
func (p *Pack) Clips() int {
	return len(p.clips)
}

// Size returns the total PCM size of all clips in bytes.
func (p *Pack) Size() int {
	return p.size
}

// Missing lists clip names used in templates that are not in the pack.
// Team sections hold clip names directly.
func (p *Pack) Missing() []string {
	seen := make(map[string]bool)
	var missing []string
	check := func(name string) {
		if _, ok := p.clips[name]; ok || seen[name] {
			return
		}
		seen[name] = true
		missing = append(missing, name)
	}

	for key, alts := range p.tree {
		for _, alt := range alts {
			if strings.HasPrefix(key, "teams/") {
				check(alt)
				continue
			}
			for _, tok := range strings.Fields(alt) {
				switch tok {
				case cue.TokenTeam, cue.TokenYellow, cue.TokenBlue:
					continue
				}
				check(tok)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// ErrNoPack is returned by Live before a pack was stored.
var ErrNoPack = errors.New("no sound pack loaded")
