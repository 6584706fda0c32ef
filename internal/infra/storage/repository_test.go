package storage

import (
	"errors"
	"testing"

	"github.com/vietddude/livesync/internal/core/domain"
)

func TestCursorCodec(t *testing.T) {
	pos := domain.Position{SortKey: 1700000000123, ID: "rec:42"}

	c := EncodeCursor(pos)
	got, ok, err := DecodeCursor(c)
	if err != nil {
		t.Fatalf("DecodeCursor failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a position, got start")
	}
	if got != pos {
		t.Errorf("expected %+v, got %+v", pos, got)
	}
}

func TestDecodeCursor_Start(t *testing.T) {
	_, ok, err := DecodeCursor(domain.CursorStart)
	if err != nil || ok {
		t.Errorf("expected start cursor, got ok=%v err=%v", ok, err)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []domain.Cursor{"!!!", "bm9jb2xvbg", "YWJjOnh5eg"}

	for _, c := range tests {
		if _, _, err := DecodeCursor(c); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("DecodeCursor(%q) = %v, want ErrInvalidCursor", c, err)
		}
	}
}
