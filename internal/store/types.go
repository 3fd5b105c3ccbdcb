package store

import "time"

type File struct {
	ID          int64
	Path        string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

type Declaration struct {
	ID        int64
	FileID    int64
	ParentID  *int64
	Ordinal   int
	Name      string
	Kind      string
	Docstring  string
	ReturnType string
	StartLine  int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Attribute kinds for declaration_attrs rows.
const (
	AttrDecorator  = "decorator"
	AttrBase       = "base"
	AttrArgument   = "argument"
	AttrCall       = "call"
	AttrAssignment = "assignment"
)
