// Package flist reads and writes flist archives.
//
// An flist describes a filesystem tree: for every path, its kind and, for
// regular files, the ordered list of content blocks stored on a separate
// content-addressable backend.
//
// On disk, an archive is a gzip-compressed tar of an embedded key-value
// database, with one key per entry. Entries are walked in lexicographic order
// of their full path.
//
// Archives are never modified in place: a new archive is written aside and
// moved into place.
package flist
