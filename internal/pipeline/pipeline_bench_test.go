package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/internal/storage"
	"github.com/dshills/chunkwise/internal/telemetry"
)

// instantModel is a fast, fake completer for benchmarking
func instantModel(_ context.Context, prompt string) (string, error) {
	if partRe.MatchString(prompt) {
		return `{"count": 3, "items": ["a", "b"], "summary": "ok"}`, nil
	}
	return "final answer", nil
}

// BenchmarkAnalyzeChunked benchmarks a full chunked run over a 20k-line log
func BenchmarkAnalyzeChunked(b *testing.B) {
	doc := logDoc(20_000)
	a := New(completion.Func(instantModel), Config{Workers: 4}, WithInstruments(telemetry.Noop()))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := a.Analyze(context.Background(), doc, "How many errors?"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWorkerCounts benchmarks different worker pool sizes
func BenchmarkWorkerCounts(b *testing.B) {
	doc := logDoc(20_000)

	for _, workers := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("%02d_workers", workers), func(b *testing.B) {
			a := New(completion.Func(instantModel), Config{Workers: workers}, WithInstruments(telemetry.Noop()))

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := a.Analyze(context.Background(), doc, "What happened?"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkAnalyzeRecorded benchmarks a run that is journaled to SQLite
func BenchmarkAnalyzeRecorded(b *testing.B) {
	doc := logDoc(5_000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store, err := storage.NewSQLiteStorage(":memory:")
		if err != nil {
			b.Fatal(err)
		}
		a := New(completion.Func(instantModel), Config{}, WithRecorder(store), WithInstruments(telemetry.Noop()))
		b.StartTimer()

		if _, err := a.Analyze(context.Background(), doc, "How many errors?"); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		_ = store.Close()
		b.StartTimer()
	}
}
