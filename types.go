package perlnav

import (
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/workspace"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder API. External consumers use these names; no conversion is
// needed.

type Store = store.Store
type File = store.File
type Entry = store.Entry
type ChangeEvent = workspace.ChangeEvent
type ChangeKind = workspace.ChangeKind
type ChangeResult = workspace.Result

// Change kinds, numbered like the protocol's FileChangeType.
const (
	Created = workspace.Created
	Changed = workspace.Changed
	Deleted = workspace.Deleted
)

// Entry kinds.
const (
	KindPackage    = store.KindPackage
	KindSubroutine = store.KindSubroutine
	KindConstant   = store.KindConstant
	KindVariable   = store.KindVariable
)
