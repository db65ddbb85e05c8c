package transport

import (
	"errors"
	"io"
	"os"
	"testing"
)

func TestTranslateDeadlineTurnsZeroNilIntoDeadlineExceeded(t *testing.T) {
	n, err := translateDeadline(0, nil)
	if n != 0 {
		t.Fatalf("expected n=0, got %d", n)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected os.ErrDeadlineExceeded, got %v", err)
	}
}

func TestTranslateDeadlinePassesThroughRealData(t *testing.T) {
	n, err := translateDeadline(5, nil)
	if n != 5 || err != nil {
		t.Fatalf("expected (5, nil) passthrough, got (%d, %v)", n, err)
	}
}

func TestTranslateDeadlinePassesThroughRealErrors(t *testing.T) {
	n, err := translateDeadline(0, io.EOF)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected (0, io.EOF) passthrough, got (%d, %v)", n, err)
	}
}

func TestTranslateDeadlinePassesThroughPartialReadWithError(t *testing.T) {
	n, err := translateDeadline(3, io.ErrUnexpectedEOF)
	if n != 3 || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected (3, io.ErrUnexpectedEOF) passthrough, got (%d, %v)", n, err)
	}
}
