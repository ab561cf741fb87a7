package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{failure(exitAuth, "wrong password"), exitAuth},
		{fmt.Errorf("wrapped: %w", failure(exitConflict, "")), exitConflict},
		{errors.New("plain"), exitInvalidInput},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	if got := dispatch(context.Background(), "nope", nil); got != exitInvalidInput {
		t.Fatalf("unknown command exit = %d, want %d", got, exitInvalidInput)
	}
}

func TestDispatchUsageErrorsReturnCodes(t *testing.T) {
	if got := dispatch(context.Background(), "disconnect", nil); got != exitInvalidInput {
		t.Fatalf("disconnect without provider exit = %d", got)
	}
	if got := dispatch(context.Background(), "link", []string{"github"}); got != exitInvalidInput {
		t.Fatalf("link without account id exit = %d", got)
	}
}
