package store

import (
	"database/sql"
	"fmt"

	"github.com/mvail/arbor/internal/tree"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, line_count, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, line_count, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.LineCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, hash, line_count, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFileData transactionally removes a file row and its declarations.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM declaration_attrs WHERE declaration_id IN (SELECT id FROM declarations WHERE file_id = ?)",
		fileID,
	); err != nil {
		return fmt.Errorf("delete attrs: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM declarations WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete declarations: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return tx.Commit()
}

// --- Forest persistence ---

// SaveFileTree replaces any cached analysis for f.Path with the given
// declaration forest, in one transaction.
func (s *Store) SaveFileTree(f *File, roots []*tree.Node) error {
	existing, err := s.FileByPath(f.Path)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := s.DeleteFileData(existing.ID); err != nil {
			return fmt.Errorf("replace cached file: %w", err)
		}
	}

	fileID, err := s.InsertFile(f)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for ordinal, root := range roots {
		if err := insertDeclTx(tx, fileID, nil, ordinal, root); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertDeclTx(tx *sql.Tx, fileID int64, parentID *int64, ordinal int, n *tree.Node) error {
	res, err := tx.Exec(
		`INSERT INTO declarations (file_id, parent_id, ordinal, name, kind, docstring, return_type,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, parentID, ordinal, n.Name, string(n.Kind), n.Docstring, n.ReturnType,
		n.StartLine, n.StartCol, n.EndLine, n.EndCol,
	)
	if err != nil {
		return fmt.Errorf("insert declaration %s: %w", n.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, group := range []struct {
		kind   string
		values []string
	}{
		{AttrDecorator, n.Decorators},
		{AttrBase, n.Bases},
		{AttrArgument, n.Arguments},
		{AttrCall, n.Calls},
		{AttrAssignment, n.Assignments},
	} {
		kind := group.kind
		for i, v := range group.values {
			if _, err := tx.Exec(
				"INSERT INTO declaration_attrs (declaration_id, kind, ordinal, value) VALUES (?, ?, ?, ?)",
				id, kind, i, v,
			); err != nil {
				return fmt.Errorf("insert %s attr: %w", kind, err)
			}
		}
	}

	for i, child := range n.Children {
		if err := insertDeclTx(tx, fileID, &id, i, child); err != nil {
			return err
		}
	}
	return nil
}

// LoadFileTree rebuilds the declaration forest for a cached file. Children
// come back in their original source order.
func (s *Store) LoadFileTree(fileID int64, filePath string) ([]*tree.Node, error) {
	rows, err := s.db.Query(
		`SELECT id, parent_id, name, kind, docstring, return_type,
			start_line, start_col, end_line, end_col
		 FROM declarations WHERE file_id = ? ORDER BY parent_id, ordinal`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("load declarations: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*tree.Node)
	type row struct {
		id       int64
		parentID *int64
	}
	var order []row
	for rows.Next() {
		var (
			id       int64
			parentID *int64
			n        = &tree.Node{FilePath: filePath}
			kind     string
		)
		if err := rows.Scan(&id, &parentID, &n.Name, &kind, &n.Docstring, &n.ReturnType,
			&n.StartLine, &n.StartCol, &n.EndLine, &n.EndCol); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		n.Kind = tree.Kind(kind)
		byID[id] = n
		order = append(order, row{id: id, parentID: parentID})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, n := range byID {
		if err := s.loadAttrs(id, n); err != nil {
			return nil, err
		}
	}

	var roots []*tree.Node
	for _, r := range order {
		n := byID[r.id]
		if r.parentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[*r.parentID]
		if !ok {
			return nil, fmt.Errorf("declaration %d references missing parent %d", r.id, *r.parentID)
		}
		parent.Children = append(parent.Children, n)
	}
	return roots, nil
}

func (s *Store) loadAttrs(declID int64, n *tree.Node) error {
	rows, err := s.db.Query(
		"SELECT kind, value FROM declaration_attrs WHERE declaration_id = ? ORDER BY kind, ordinal",
		declID,
	)
	if err != nil {
		return fmt.Errorf("load attrs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return fmt.Errorf("scan attr: %w", err)
		}
		switch kind {
		case AttrDecorator:
			n.Decorators = append(n.Decorators, value)
		case AttrBase:
			n.Bases = append(n.Bases, value)
		case AttrArgument:
			n.Arguments = append(n.Arguments, value)
		case AttrCall:
			n.Calls = append(n.Calls, value)
		case AttrAssignment:
			n.Assignments = append(n.Assignments, value)
		}
	}
	return rows.Err()
}
