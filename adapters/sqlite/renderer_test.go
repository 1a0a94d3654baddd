package exportsqlite

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

func TestRenderer_RendersSQLite(t *testing.T) {
	schema := export.NewSchema([]string{"Host", "Local", "Peer"})
	iter := export.NewSliceIterator([]export.Row{
		{"host1", "up", "up"},
		{"host2", "down"},
		{"host3", "up", "up", "rack 4"},
	})

	buf := &bytes.Buffer{}
	stats, err := Renderer{}.Render(context.Background(), schema, iter, buf, export.RenderOptions{
		SQLite: export.SQLiteOptions{Table: "Router Status"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Rows != 3 {
		t.Fatalf("expected 3 rows, got %d", stats.Rows)
	}
	if stats.Bytes == 0 || stats.Bytes != int64(buf.Len()) {
		t.Fatalf("expected %d bytes, got %d", buf.Len(), stats.Bytes)
	}

	db := openSQLite(t, buf.Bytes())

	names, types := tableInfo(t, db, "Router_Status")
	if want := []string{"host", "local", "peer", "column_4"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("expected columns %v, got %v", want, names)
	}
	for i, typ := range types {
		if typ != "TEXT" {
			t.Fatalf("column %d: expected TEXT, got %q", i, typ)
		}
	}

	rows, err := db.Query(`SELECT host, local, peer, column_4 FROM "Router_Status" ORDER BY rowid`)
	if err != nil {
		t.Fatalf("select rows: %v", err)
	}
	defer rows.Close()

	var got [][]any
	for rows.Next() {
		var host, local string
		var peer, extra sql.NullString
		if err := rows.Scan(&host, &local, &peer, &extra); err != nil {
			t.Fatalf("scan row: %v", err)
		}
		got = append(got, []any{host, local, peer.Valid, extra.String})
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}
	want := [][]any{
		{"host1", "up", true, ""},
		{"host2", "down", false, ""},
		{"host3", "up", true, "rack 4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRenderer_EmptySchemaDefaultTable(t *testing.T) {
	buf := &bytes.Buffer{}
	stats, err := Renderer{}.Render(context.Background(), export.Schema{}, export.NewSliceIterator([]export.Row{{"a", "b"}}), buf, export.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Rows != 1 {
		t.Fatalf("expected 1 row, got %d", stats.Rows)
	}

	db := openSQLite(t, buf.Bytes())
	names, _ := tableInfo(t, db, defaultTableName)
	if !reflect.DeepEqual(names, []string{"column_1", "column_2"}) {
		t.Fatalf("unexpected columns %v", names)
	}
}

func TestRenderer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Renderer{}.Render(ctx, export.NewSchema([]string{"A"}), export.NewSliceIterator([]export.Row{{"a"}}), &bytes.Buffer{}, export.RenderOptions{})
	if export.KindFromError(err) != export.KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestRegister_WithRendererSink(t *testing.T) {
	registry := export.DefaultRenderers()
	if err := Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	store := export.NewMemoryStore()
	sink, err := export.NewRendererSink(registry, export.FormatSQLite, store)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if _, err := sink.WriteSheet(context.Background(), "Status", export.NewSchema([]string{"Host"}), export.NewSliceIterator([]export.Row{{"h"}})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if keys := store.Keys(); !reflect.DeepEqual(keys, []string{"Status.db"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"":            "data",
		"Status":      "Status",
		"a b-c":       "a_b_c",
		"2024 report": "t_2024_report",
		"***":         "data",
	}
	for in, want := range cases {
		if got := sanitizeIdentifier(in, defaultTableName); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func openSQLite(t *testing.T, data []byte) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.sqlite")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func tableInfo(t *testing.T, db *sql.DB, table string) ([]string, []string) {
	t.Helper()
	infoRows, err := db.Query(`PRAGMA table_info(` + quoteIdentifier(table) + `)`)
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer infoRows.Close()

	var names, types []string
	for infoRows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString
		if err := infoRows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			t.Fatalf("scan table info: %v", err)
		}
		names = append(names, name)
		types = append(types, colType)
	}
	if err := infoRows.Err(); err != nil {
		t.Fatalf("table info rows: %v", err)
	}
	return names, types
}
