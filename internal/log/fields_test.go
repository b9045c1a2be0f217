package log

import (
	"reflect"
	"testing"
)

func TestLogFieldsToSliceIsDeterministic(t *testing.T) {
	fields := NewFields().
		WithOwner("u1").
		WithOperation(OpCreate).
		WithMovement(42, "saida", "fixa", 2500)

	want := []any{
		FieldAmountCents, int64(2500),
		FieldCategory, "fixa",
		FieldDirection, "saida",
		FieldMovementID, int64(42),
		FieldOperation, OpCreate,
		FieldOwnerID, "u1",
	}
	got := fields.ToSlice()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToSlice() = %v, want %v", got, want)
	}

	// Map iteration order varies per run; the output must not.
	for i := 0; i < 20; i++ {
		if again := fields.ToSlice(); !reflect.DeepEqual(again, got) {
			t.Fatalf("ToSlice() unstable: %v then %v", got, again)
		}
	}
}

func TestLogFieldsWithErrorSkipsNil(t *testing.T) {
	fields := NewFields().WithError(nil)
	if len(fields) != 0 {
		t.Errorf("nil error should add no field, got %v", fields)
	}
}
