package ota

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{name: "session error", err: &SessionError{Kind: KindTimeout, Err: errors.New("x")}, kind: KindTimeout},
		{name: "wrapped session error", err: fmt.Errorf("wrap: %w", sessionError(KindCommitFailed, errors.New("x"))), kind: KindCommitFailed},
		{name: "memory", err: fmt.Errorf("%w: low", ErrInsufficientMemory), kind: KindInsufficientMemory},
		{name: "open", err: ErrStorageOpenFailed, kind: KindStorageOpenFailed},
		{name: "write", err: ErrStorageWriteFailed, kind: KindStorageWriteFailed},
		{name: "timeout", err: ErrTimeout, kind: KindTimeout},
		{name: "no session", err: ErrNoSession, kind: KindProtocolMisuse},
		{name: "size exceeded", err: ErrSizeExceeded, kind: KindProtocolMisuse},
		{name: "incomplete", err: ErrIncomplete, kind: KindCommitFailed},
		{name: "other", err: context.Canceled, kind: KindAborted},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.kind, KindOf(test.err))
		})
	}
}

func TestSessionErrorKeepsFirstKind(t *testing.T) {
	inner := sessionError(KindTimeout, ErrTimeout)
	outer := sessionError(KindAborted, inner)
	require.Same(t, inner, outer)
	require.ErrorIs(t, outer, ErrTimeout)
	require.Nil(t, sessionError(KindAborted, nil))
}

func TestReporterMux(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var mux ReporterMux
	mux.Add(a, b)
	ctx := context.Background()
	require.NoError(t, mux.ReportStatus(ctx, Status{Event: StatusEvent, Status: StatusComplete}))
	require.NoError(t, mux.ReportProgress(ctx, Progress{ReceivedSize: 1}))
	require.Len(t, a.all(), 1)
	require.Len(t, b.all(), 1)
	require.Len(t, a.progress, 1)
}
