package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"otc-signalbot/pkg/candlefeed"
)

type stubFetcher struct {
	candles []candlefeed.Candle
	err     error

	gotOffset time.Duration
}

func (s *stubFetcher) GetCandles(_ context.Context, _ string, _ time.Time, offset, _ time.Duration) ([]candlefeed.Candle, error) {
	s.gotOffset = offset
	return s.candles, s.err
}

func TestFetchBars_SortsAndTrims(t *testing.T) {
	stub := &stubFetcher{candles: []candlefeed.Candle{
		{Time: 180, Open: 4, Close: 5},
		{Time: 0, Open: 1, Close: 2},
		{Time: 120, Open: 3, Close: 4},
		{Time: 60, Open: 2, Close: 3},
		{Time: 240, Open: 5, Close: 6},
	}}
	src := NewSource(stub)

	bars, err := src.FetchBars(context.Background(), "EURUSD_otc", time.Unix(300, 0), 4, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.gotOffset != 4*time.Minute {
		t.Errorf("expected 4m offset, got %v", stub.gotOffset)
	}
	if len(bars) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(bars))
	}
	for i, want := range []int64{60, 120, 180, 240} {
		if bars[i].Timestamp != want {
			t.Errorf("bar %d: expected ts %d, got %d", i, want, bars[i].Timestamp)
		}
	}
}

func TestFetchBars_EmptyIsAbsent(t *testing.T) {
	src := NewSource(&stubFetcher{})
	bars, err := src.FetchBars(context.Background(), "EURUSD_otc", time.Now(), 4, time.Minute)
	if err != nil || bars != nil {
		t.Fatalf("expected nil, nil; got %v, %v", bars, err)
	}
}

func TestFetchBars_Error(t *testing.T) {
	boom := errors.New("boom")
	var observed error
	src := NewSource(&stubFetcher{err: boom})
	src.OnFetch = func(_ string, _ int, err error) { observed = err }

	if _, err := src.FetchBars(context.Background(), "EURUSD_otc", time.Now(), 2, time.Minute); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if observed != boom {
		t.Error("OnFetch should see the error")
	}
}

func TestToBars_DuplicateTimestampKeepsLatest(t *testing.T) {
	bars := ToBars([]candlefeed.Candle{
		{Time: 60, Open: 1, Close: 1},
		{Time: 60, Open: 1, Close: 2},
	}, 4)
	if len(bars) != 1 || bars[0].Close != 2 {
		t.Errorf("unexpected bars %+v", bars)
	}
}
