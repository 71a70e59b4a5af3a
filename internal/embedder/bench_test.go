package embedder

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	text := "func ParseFile(path string) (*ParseResult, error) { return nil, nil }"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ComputeHash(text)
	}
}

func BenchmarkCacheHit(b *testing.B) {
	cache := NewCache(NewLocalModel(Config{}), 1000)
	ctx := context.Background()
	texts := make([]string, 32)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}
	if _, err := cache.Encode(ctx, texts, EncodeOptions{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.Encode(ctx, texts, EncodeOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConcurrentCache(b *testing.B) {
	cache := NewCache(NewLocalModel(Config{}), 1000)
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			text := fmt.Sprintf("text %d", i%200)
			if _, err := cache.EncodeOne(ctx, text, EncodeOptions{Normalize: true}); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

func BenchmarkLocalModel(b *testing.B) {
	model := NewLocalModel(Config{})
	ctx := context.Background()
	texts := []string{"def foo():\n    return 1", "class Bar:\n    pass"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := model.Encode(ctx, texts, EncodeOptions{Normalize: true}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNormalizeVector(b *testing.B) {
	v := make([]float32, LocalDimension)
	for i := range v {
		v[i] = float32(i%7) - 3
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeVector(v)
	}
}
