package perf

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almoxarifado/almoxarifado/internal/budgets"
	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

func TestItemLockHandoffLatency(t *testing.T) {
	locker := lock.NewLocalLocker()
	key := shared.ItemLockKey(1)

	const workers, rounds = 8, 50
	var (
		mu      sync.Mutex
		samples []time.Duration
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				start := time.Now()
				release, err := locker.Acquire(context.Background(), key)
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				wait := time.Since(start)
				release()
				mu.Lock()
				samples = append(samples, wait)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(samples) != workers*rounds {
		t.Fatalf("expected %d samples, got %d", workers*rounds, len(samples))
	}
	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("lock handoff regression: p95=%s", p95)
	}
	if held := locker.Held(key); held != 0 {
		t.Fatalf("lock slot leaked, %d holders", held)
	}
}

func BenchmarkLocalLockerSingleItem(b *testing.B) {
	locker := lock.NewLocalLocker()
	key := shared.ItemLockKey(1)
	ctx := context.Background()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			release, err := locker.Acquire(ctx, key)
			if err != nil {
				b.Fatal(err)
			}
			release()
		}
	})
}

func BenchmarkLocalLockerSpreadItems(b *testing.B) {
	locker := lock.NewLocalLocker()
	ctx := context.Background()
	var next int64
	var mu sync.Mutex
	b.RunParallel(func(pb *testing.PB) {
		mu.Lock()
		next++
		key := shared.ItemLockKey(next)
		mu.Unlock()
		for pb.Next() {
			release, err := locker.Acquire(ctx, key)
			if err != nil {
				b.Fatal(err)
			}
			release()
		}
	})
}

func BenchmarkComposeBudget(b *testing.B) {
	inputs := make([]budgets.LineInput, budgets.MaxLines)
	for i := range inputs {
		inputs[i] = budgets.LineInput{
			ItemID:     int64(i + 1),
			SupplierID: 1,
			Quantity:   int64(i%7 + 1),
			UnitPrice:  decimal.RequireFromString("12.345"),
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		budgets.Compose(inputs)
	}
}

func BenchmarkDeriveStatus(b *testing.B) {
	for i := 0; i < b.N; i++ {
		status.Derive(int64(i%100), 50)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
