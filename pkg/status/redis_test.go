package status

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofw/pkg/ota"
)

func TestStatusFields(t *testing.T) {
	k := KeysOf("firmware")
	tests := []struct {
		name string
		st   ota.Status
		set  map[string]interface{}
		del  []string
	}{
		{
			name: "complete",
			st:   ota.Status{Status: ota.StatusComplete, ReceivedSize: 1000, TotalSize: 1000},
			set: map[string]interface{}{
				"status:firmware":         ValueComplete,
				"download-bytes:firmware": int64(1000),
				"download-total:firmware": int64(1000),
			},
			del: []string{"error:firmware", "error-message:firmware"},
		},
		{
			name: "failed",
			st:   ota.Status{Status: ota.StatusFailed, Kind: ota.KindTimeout, Detail: "timeout: update timeout"},
			set: map[string]interface{}{
				"status:firmware":        ValueError,
				"error:firmware":         "timeout",
				"error-message:firmware": "timeout: update timeout",
			},
			del: []string{"download-bytes:firmware", "download-total:firmware"},
		},
		{
			name: "failed without kind",
			st:   ota.Status{Status: ota.StatusFailed, Detail: "x"},
			set: map[string]interface{}{
				"status:firmware":        ValueError,
				"error:firmware":         string(ota.KindAborted),
				"error-message:firmware": "x",
			},
			del: []string{"download-bytes:firmware", "download-total:firmware"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := k.StatusFields(test.st)
			require.Equal(t, test.set, f.Set)
			require.Equal(t, test.del, f.Del)
		})
	}
}

func TestProgressFields(t *testing.T) {
	f := KeysOf("mcu").ProgressFields(ota.Progress{State: ota.StateActive, ReceivedSize: 512, TotalSize: 1000})
	require.Equal(t, map[string]interface{}{
		"status:mcu":         ValueDownloading,
		"download-bytes:mcu": int64(512),
		"download-total:mcu": int64(1000),
	}, f.Set)
	require.Equal(t, []string{"error:mcu", "error-message:mcu"}, f.Del)
}

// TestReporterLive runs against a real redis when REDIS_ADDR is set.
func TestReporterLive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer client.Close()

	r := NewReporter(client, "robofw-test")
	r.Hash = "robofw-test-ota"
	defer client.Del(ctx, r.Hash)

	require.NoError(t, r.ReportProgress(ctx, ota.Progress{ReceivedSize: 10, TotalSize: 20}))
	vals, err := client.HGetAll(ctx, r.Hash).Result()
	require.NoError(t, err)
	require.Equal(t, ValueDownloading, vals[r.Keys.Status])
	require.Equal(t, "10", vals[r.Keys.DownloadBytes])

	require.NoError(t, r.ReportStatus(ctx, ota.Status{Status: ota.StatusFailed, Kind: ota.KindAborted, Detail: "stop"}))
	vals, err = client.HGetAll(ctx, r.Hash).Result()
	require.NoError(t, err)
	require.Equal(t, ValueError, vals[r.Keys.Status])
	require.Equal(t, "stop", vals[r.Keys.ErrorMessage])
	require.NotContains(t, vals, r.Keys.DownloadBytes)

	require.NoError(t, r.Clear(ctx))
	vals, err = client.HGetAll(ctx, r.Hash).Result()
	require.NoError(t, err)
	require.Empty(t, vals)
}
