package csql

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTable(t *testing.T) {
	db := &DB{Schema: "kadmin"}
	if got := db.Table("user"); got != `"kadmin"."user"` {
		t.Fatalf(`Expected "kadmin"."user", got %s`, got)
	}
}

func TestClearSchema(t *testing.T) {
	if err := (&DB{Schema: "public"}).ClearSchema(); err == nil {
		t.Fatal("Expected public schema to be protected")
	}

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	mock.ExpectExec(`DROP SCHEMA "kadmin" CASCADE;`).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := (&DB{DB: sqlDB, Schema: "kadmin"}).ClearSchema(); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
