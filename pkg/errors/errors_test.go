package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "local storage unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapAndAs(t *testing.T) {
	cause := stdErrors.New("disk full")
	wrapped := fmt.Errorf("saving queue: %w", Wrap(CodeStorage, cause, "persist outbox"))

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeStorage {
		t.Fatalf("expected storage code, got %s", typed.Code())
	}
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if !HasCode(wrapped, CodeStorage) || HasCode(wrapped, CodeNotFound) {
		t.Fatal("HasCode mismatch")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors should not convert")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad payload").WithDetails(map[string]string{"kind": "is invalid"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["kind"] != "is invalid" {
		t.Fatalf("unexpected details %#v", err.Details())
	}
	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Error() != "" {
		t.Fatal("nil error accessors should be safe")
	}
}

func TestDumpIncludesChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "sync_documents_pkey", TableName: "sync_documents", Message: "duplicate key"}
	err := Wrap(CodeStorage, pgErr, "save document")

	dump := Dump(err)
	if dump.Code != CodeStorage {
		t.Fatalf("expected storage code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	if dump.PGCode != "23505" || dump.PGTable != "sync_documents" {
		t.Fatalf("unexpected pg fields %#v", dump)
	}
	fields := dump.Fields()
	if fields["pg_constraint"] != "sync_documents_pkey" {
		t.Fatalf("expected pg constraint in fields, got %#v", fields)
	}
	if empty := Dump(nil); empty.TopMessage != "" {
		t.Fatal("nil dump should be empty")
	}
}

func TestCodeOfAndRetryable(t *testing.T) {
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatal("uncoded errors should map to internal")
	}
	dep := Wrapf(CodeDependency, stdErrors.New("dial tcp"), "POST %s", "/api/rdo")
	if dep.Message() != "POST /api/rdo" {
		t.Fatalf("unexpected message %q", dep.Message())
	}
	if !IsRetryable(fmt.Errorf("flush: %w", dep)) {
		t.Fatal("dependency errors should be retryable")
	}
	if IsRetryable(Newf(CodeValidation, "bad kind %q", "EPI")) {
		t.Fatal("validation errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestDumpIncludesSQLiteCodes(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy, ExtendedCode: sqlite3.ErrBusySnapshot}
	dump := Dump(Wrap(CodeStorage, busy, "save outbox queue"))
	if dump.SQLiteCode != int(sqlite3.ErrBusy) {
		t.Fatalf("expected busy code, got %d", dump.SQLiteCode)
	}
	if _, ok := dump.Fields()["sqlite_extended_code"]; !ok {
		t.Fatalf("expected sqlite fields, got %#v", dump.Fields())
	}
}
