package main

import (
	"github.com/basket/sqlsync/internal/engine"
)

// Foo is the demo record behind the foos table.
type Foo struct {
	ID   int64
	Text string
	Flag bool
}

// PrimaryKey returns the foos.id value.
func (f Foo) PrimaryKey() int64 {
	return f.ID
}

// decodeFoo reads one foos row. Column order matches SELECT * over the
// bundled schema: id, text, flag.
func decodeFoo(row engine.Row) (Foo, error) {
	var f Foo
	if err := row.Scan(&f.ID, &f.Text, &f.Flag); err != nil {
		return Foo{}, err
	}
	return f, nil
}
