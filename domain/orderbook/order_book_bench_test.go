package orderbook

import "testing"

// ---------------- Basic Benchmarks ---------------- //

func BenchmarkPlaceNonCrossing(b *testing.B) {
	book, _ := New(WithArenaCapacity(1 << 20))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book.Execute(LimitOrder(ID(uint64(i+1)), Bid, 1.0, 100.0))
	}
}

func BenchmarkPlaceCancel(b *testing.B) {
	book, _ := New(WithArenaCapacity(1 << 20))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := ID(uint64(i + 1))
		book.Execute(LimitOrder(id, Bid, 1.0, 100.0))
		book.Execute(CancelOrder(id))
	}
}

func BenchmarkCrossingFlow(b *testing.B) {
	book, _ := New(WithArenaCapacity(1 << 20))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i)*2 + 1
		if i%2 == 0 {
			book.Execute(LimitOrder(ID(id), Ask, 1.0, 99.0))
		} else {
			book.Execute(LimitOrder(ID(id+1), Bid, 1.0, 100.0))
		}
	}
}

func BenchmarkMarketSweep(b *testing.B) {
	book, _ := New(WithArenaCapacity(1 << 20))
	for i := 0; i < 1000; i++ {
		book.Execute(LimitOrder(ID(uint64(i+1)), Ask, 1.0, float64(100+i%10)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book.Execute(MarketOrder(ID(uint64(1_000_000+i)), Bid, 1.0))
		// Keep depth stable so every iteration does the same work.
		book.Execute(LimitOrder(ID(uint64(2_000_000+i)), Ask, 1.0, float64(100+i%10)))
	}
}

func BenchmarkDepthSnapshot(b *testing.B) {
	book, _ := New(WithArenaCapacity(1 << 20))
	for i := 0; i < 5000; i++ {
		if i%2 == 0 {
			book.Execute(LimitOrder(ID(uint64(i+1)), Bid, 1.0, float64(40+i%50)))
		} else {
			book.Execute(LimitOrder(ID(uint64(i+1)), Ask, 1.0, float64(150+i%50)))
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if d := book.DepthBoth(16); len(d.Bids) == 0 {
			b.Fatal("empty depth")
		}
	}
}
