package dataset

import (
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type omniglotEntry struct {
	path  string
	label int
}

// OmniglotSet indexes the background split laid out as
// images_background/<alphabet>/<character>/<drawing>.png. Each character
// directory is one class; classes are numbered in sorted path order.
type OmniglotSet struct {
	entries []omniglotEntry
	classes int
}

// OpenOmniglot walks root (or root/images_background when present).
func OpenOmniglot(root string) (*OmniglotSet, error) {
	base := filepath.Join(root, "images_background")
	if st, err := os.Stat(base); err != nil || !st.IsDir() {
		base = root
	}
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".png") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open Omniglot: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("open Omniglot: no PNG drawings under %s", base)
	}
	sort.Strings(files)

	set := &OmniglotSet{entries: make([]omniglotEntry, len(files))}
	classOf := make(map[string]int)
	for i, f := range files {
		dir := filepath.Dir(f)
		label, ok := classOf[dir]
		if !ok {
			label = len(classOf)
			classOf[dir] = label
		}
		set.entries[i] = omniglotEntry{path: f, label: label}
	}
	set.classes = len(classOf)
	return set, nil
}

func (o *OmniglotSet) Len() int { return len(o.entries) }

// Classes is the number of distinct characters found.
func (o *OmniglotSet) Classes() int { return o.classes }

func (o *OmniglotSet) Get(i int) (image.Image, int, error) {
	if err := checkIndex(i, o.Len()); err != nil {
		return nil, 0, err
	}
	e := o.entries[i]
	f, err := os.Open(e.path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", e.path, err)
	}
	return img, e.label, nil
}
