package flist

import (
	"context"
	"fmt"

	"github.com/oneconcern/flisthub/pkg/flist/status"
)

// Visitor is called for every entry of an archive, with one method per kind
type Visitor interface {
	VisitDirectory(Entry) error
	VisitRegular(Entry) error
	VisitSymlink(Entry) error
	VisitSpecial(Entry) error
}

// VisitorFuncs adapts functions to a Visitor. Nil functions skip entries of their kind.
type VisitorFuncs struct {
	Directory func(Entry) error
	Regular   func(Entry) error
	Symlink   func(Entry) error
	Special   func(Entry) error
}

var _ Visitor = VisitorFuncs{}

// VisitDirectory calls the Directory func
func (v VisitorFuncs) VisitDirectory(e Entry) error { return call(v.Directory, e) }

// VisitRegular calls the Regular func
func (v VisitorFuncs) VisitRegular(e Entry) error { return call(v.Regular, e) }

// VisitSymlink calls the Symlink func
func (v VisitorFuncs) VisitSymlink(e Entry) error { return call(v.Symlink, e) }

// VisitSpecial calls the Special func
func (v VisitorFuncs) VisitSpecial(e Entry) error { return call(v.Special, e) }

func call(fn func(Entry) error, e Entry) error {
	if fn == nil {
		return nil
	}
	return fn(e)
}

// Walk visits every entry of an archive exactly once, in lexicographic order of paths.
//
// Walk stops at the first error returned by the visitor, or when the context is done.
func Walk(ctx context.Context, store *Store, visitor Visitor) error {
	return store.iterate(ctx, func(e Entry) error {
		switch e.Kind {
		case KindDirectory:
			return visitor.VisitDirectory(e)
		case KindRegular:
			return visitor.VisitRegular(e)
		case KindSymlink:
			return visitor.VisitSymlink(e)
		case KindSpecial:
			return visitor.VisitSpecial(e)
		default:
			return status.ErrCorrupt.Wrap(fmt.Errorf("%s: %v", e.Path, e.Kind))
		}
	})
}
