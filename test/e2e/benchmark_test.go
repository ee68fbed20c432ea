//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/dittolpd/pkg/client"
)

// BenchmarkSubmit measures job submission throughput per store combination
// and payload size.
func BenchmarkSubmit(b *testing.B) {
	sizes := []int{4 * 1024, 1024 * 1024}

	for _, name := range []string{"memory-memory", "badger-filesystem", "sqlite-filesystem"} {
		b.Run(name, func(b *testing.B) {
			for _, size := range sizes {
				b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
					benchmarkSubmit(b, GetConfiguration(name), size)
				})
			}
		})
	}
}

func benchmarkSubmit(b *testing.B, cfg *TestConfig, size int) {
	tc := NewTestContext(b, cfg)
	defer tc.Cleanup()

	payload := bytes.Repeat([]byte("x"), size)
	ctx := context.Background()

	b.SetBytes(int64(size))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := tc.Client.Submit(ctx, QueueRaw, &client.Job{
			Files: []client.File{{
				Name: "bench.bin",
				Data: bytes.NewReader(payload),
				Size: int64(size),
			}},
		})
		if err != nil {
			b.Fatalf("Submit failed: %v", err)
		}
	}
}
