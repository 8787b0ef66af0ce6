package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		expect Location
		fail   bool
	}{
		{name: "object", url: "gs://fleet/robots/fw-1.2.bin", expect: Location{Bucket: "fleet", Object: "robots/fw-1.2.bin"}},
		{name: "prefix", url: "gs://fleet/robots/", expect: Location{Bucket: "fleet", Object: "robots/" + DefaultObjectName}},
		{name: "bucket only", url: "gs://fleet", expect: Location{Bucket: "fleet", Object: DefaultObjectName}},
		{name: "wrong scheme", url: "s3://fleet/x", fail: true},
		{name: "no bucket", url: "gs:///x", fail: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			loc, err := ParseURL(test.url)
			if test.fail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expect, loc)
		})
	}
	require.Equal(t, "gs://fleet/a/b", Location{Bucket: "fleet", Object: "a/b"}.String())
}

func TestTargetNotOpen(t *testing.T) {
	tgt := New(nil, Location{Bucket: "fleet", Object: "x"})
	_, err := tgt.Write([]byte{1})
	require.Error(t, err)
	require.Error(t, tgt.Commit(context.Background()))
	require.NoError(t, tgt.Abort(context.Background()))
}
