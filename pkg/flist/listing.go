package flist

import "context"

// ListEntry is one line of an archive listing
type ListEntry struct {
	Path string `json:"path" yaml:"path"`
	Size int64  `json:"size" yaml:"size"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Listing summarizes the content of an archive
type Listing struct {
	Content   []ListEntry `json:"content" yaml:"content"`
	Regular   int         `json:"regular" yaml:"regular"`
	Directory int         `json:"directory" yaml:"directory"`
	Symlink   int         `json:"symlink" yaml:"symlink"`
	Special   int         `json:"special" yaml:"special"`
}

// Total number of entries
func (l Listing) Total() int {
	return l.Regular + l.Directory + l.Symlink + l.Special
}

// List all entries of an archive, in walk order, with counts per kind.
//
// This doesn't access the backend.
func List(ctx context.Context, store *Store) (Listing, error) {
	listing := Listing{Content: []ListEntry{}}
	add := func(counter *int) func(Entry) error {
		return func(e Entry) error {
			listing.Content = append(listing.Content, ListEntry{Path: e.Path, Size: e.Size, Kind: e.Kind})
			*counter++
			return nil
		}
	}

	err := Walk(ctx, store, VisitorFuncs{
		Directory: add(&listing.Directory),
		Regular:   add(&listing.Regular),
		Symlink:   add(&listing.Symlink),
		Special:   add(&listing.Special),
	})
	if err != nil {
		return Listing{}, err
	}
	return listing, nil
}
