// Package hub manages the public repository of flist archives.
//
// Archives are published under <public>/<namespace>/<name>.flist. The hub
// builds archives from uploaded tarballs, accepts prebuilt archives whose
// content is already on the backend, merges archives, and provides the
// namespace operations (promote, link, rename, delete, listings).
//
// Every change to a published file is made by writing aside then renaming
// into place, under an advisory lock on the target.
package hub
