// Package bench measures the cost of specializing and invoking functions.
//
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
package bench

import (
	"context"
	"fmt"
	"testing"

	"github.com/caffeineduck/fnhost/function"
	"github.com/caffeineduck/fnhost/host"
	"github.com/caffeineduck/fnhost/internal/wasmtest"
	"github.com/caffeineduck/fnhost/loader"
)

func newHost(b *testing.B, opts ...loader.Option) (*host.Host, *loader.Loader) {
	b.Helper()
	l, err := loader.New(opts...)
	if err != nil {
		b.Fatal(err)
	}
	h := host.New(l)
	b.Cleanup(func() {
		h.Close(context.Background())
		l.Close()
	})
	return h, l
}

func specialize(b *testing.B, h *host.Host, location, entry string) {
	b.Helper()
	if err := h.Specialize(context.Background(), host.Request{Location: location, EntryPoint: entry}); err != nil {
		b.Fatal(err)
	}
}

// --- Specialization ---

// Every iteration uses a fresh loader, so nothing is cached.
func BenchmarkSpecialize_Cold(b *testing.B) {
	jar := wasmtest.HelloJar(b)
	for i := 0; i < b.N; i++ {
		l, _ := loader.New()
		h := host.New(l)
		h.Specialize(context.Background(), host.Request{Location: jar, EntryPoint: "io.fission.HelloWorld"})
		h.Close(context.Background())
		l.Close()
	}
}

// Re-specializing the same artifact hits the compilation cache.
func BenchmarkSpecialize_Warm(b *testing.B) {
	jar := wasmtest.HelloJar(b)
	h, _ := newHost(b)
	specialize(b, h, jar, "io.fission.HelloWorld")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		specialize(b, h, jar, "io.fission.HelloWorld")
	}
}

func BenchmarkSpecialize_Dependencies(b *testing.B) {
	entries := []wasmtest.Entry{wasmtest.E("io/fission/Fn.wasm", wasmtest.UsesLibrary("lib.Answer"))}
	entries = append(entries, wasmtest.E("lib/Answer.wasm", wasmtest.Library()))
	for i := range 8 {
		entries = append(entries, wasmtest.E(fmt.Sprintf("lib/Unused%d.wasm", i), wasmtest.Library()))
	}
	jar := wasmtest.WriteZip(b, "deps.jar", entries...)
	h, _ := newHost(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		specialize(b, h, jar, "io.fission.Fn")
	}
}

// --- Invocation ---

func BenchmarkInvoke_Hello(b *testing.B) {
	h, _ := newHost(b)
	specialize(b, h, wasmtest.HelloJar(b), "io.fission.HelloWorld")
	req := &function.Request{Method: "GET", URI: "/"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Invoke(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInvoke_Echo(b *testing.B) {
	for _, size := range []int{64, 4 << 10, 64 << 10} {
		b.Run(fmt.Sprintf("body=%d", size), func(b *testing.B) {
			h, _ := newHost(b)
			specialize(b, h, wasmtest.WriteFile(b, "echo.wasm", wasmtest.Echo()), "echo")
			req := &function.Request{Method: "POST", URI: "/", Body: make([]byte, size)}
			req.Header.Set("Content-Type", "application/octet-stream")

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := h.Invoke(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkInvoke_Parallel(b *testing.B) {
	h, _ := newHost(b, loader.WithPoolSize(8))
	specialize(b, h, wasmtest.HelloJar(b), "io.fission.HelloWorld")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		req := &function.Request{Method: "GET", URI: "/"}
		for pb.Next() {
			if _, err := h.Invoke(context.Background(), req); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// Invocations keep running while the handler is swapped underneath them.
func BenchmarkInvoke_DuringRespecialize(b *testing.B) {
	jar := wasmtest.HelloJar(b)
	h, _ := newHost(b)
	specialize(b, h, jar, "io.fission.HelloWorld")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			h.Specialize(ctx, host.Request{Location: jar, EntryPoint: "io.fission.HelloWorld"})
		}
	}()

	req := &function.Request{Method: "GET", URI: "/"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Invoke(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	cancel()
	<-done
}
