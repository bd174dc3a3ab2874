// Command scardb is a small smoke-test driver for the engine package: it
// builds a handful of ast.Statement values directly (no SQL text parser
// is part of this module; see spec.md's scope) and runs them against a
// fresh database directory, printing each result.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/engine"
)

func lit(v any) ast.Literal { return ast.Literal{Val: v} }

func main() {
	dir, err := os.MkdirTemp("", "scardb-demo-*")
	if err != nil {
		log.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := engine.Open(dir)
	if err != nil {
		log.Fatalf("engine.Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	run := func(label string, stmt ast.Statement) *engine.Result {
		res, err := db.Execute(ctx, stmt)
		if err != nil {
			fmt.Printf("%s: error: %v\n", label, err)
			return nil
		}
		fmt.Printf("%s: ok (affected=%d)\n", label, res.Affected)
		return res
	}

	run("create accounts", ast.CreateTable{
		Name: "accounts",
		Columns: []ast.Column{
			{Name: "id", Type: ast.TypeInt, PrimaryKey: true, AutoIncrement: true, NotNull: true},
			{Name: "email", Type: ast.TypeVarchar, Width: 64, NotNull: true},
			{Name: "active", Type: ast.TypeBoolean, NotNull: true},
		},
	})

	run("insert alice", ast.Insert{
		Table:   "accounts",
		Columns: []string{"email", "active"},
		Rows:    [][]ast.Expr{{lit("alice@example.com"), lit(true)}},
	})
	run("insert bob", ast.Insert{
		Table:   "accounts",
		Columns: []string{"email", "active"},
		Rows:    [][]ast.Expr{{lit("bob@example.com"), lit(false)}},
	})

	res := run("select by pk", ast.Select{
		From: ast.Table{Name: "accounts"},
		Where: ast.Comparison{
			Op:    ast.OpEq,
			Left:  ast.ColumnRef{Column: "id"},
			Right: lit(int64(1)),
		},
	})
	printRows(res)

	run("update bob active", ast.Update{
		Table:       "accounts",
		Assignments: []ast.Assignment{{Column: "active", Value: lit(true)}},
		Where: ast.Comparison{
			Op:    ast.OpEq,
			Left:  ast.ColumnRef{Column: "email"},
			Right: lit("bob@example.com"),
		},
	})

	res = run("select all", ast.Select{From: ast.Table{Name: "accounts"}})
	printRows(res)

	st, err := db.Stats("accounts")
	if err != nil {
		fmt.Printf("stats: error: %v\n", err)
	} else {
		fmt.Printf("stats: pages=%d live=%d free=%d\n", st.Pages, st.LiveRows, st.FreeSlots)
	}
}

func printRows(res *engine.Result) {
	if res == nil || res.Cols == nil {
		return
	}
	fmt.Println("  cols:", res.Cols)
	for _, row := range res.Rows {
		fmt.Println("  row:", row)
	}
}
