package paginate

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestFetchStopsOnShortPage(t *testing.T) {
	const size = 10
	for _, full := range []int{0, 1, 3} {
		calls := 0
		fn := func(_ context.Context, req Request) (Page[int], error) {
			calls++
			if req.Offset != (calls-1)*size {
				t.Fatalf("call %d offset=%d", calls, req.Offset)
			}
			n := size
			if calls > full {
				n = size - 1
			}
			return Page[int]{Items: make([]int, n)}, nil
		}
		got, err := Fetch(context.Background(), size, fn)
		if err != nil {
			t.Fatalf("full=%d: %v", full, err)
		}
		if want := full*size + size - 1; len(got) != want {
			t.Fatalf("full=%d: got %d items want %d", full, len(got), want)
		}
		if calls != full+1 {
			t.Fatalf("full=%d: calls=%d", full, calls)
		}
	}
}

func TestFetchStopsOnDoneToken(t *testing.T) {
	calls := 0
	var tokens []string
	fn := func(_ context.Context, req Request) (Page[string], error) {
		calls++
		tokens = append(tokens, req.Token)
		if calls == 3 {
			return Page[string]{Items: []string{"a", "b"}, Done: true}, nil
		}
		return Page[string]{Items: []string{"a", "b"}, Next: "p" + strconv.Itoa(calls)}, nil
	}
	got, err := Fetch(context.Background(), 2, fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 || calls != 3 {
		t.Fatalf("items=%d calls=%d", len(got), calls)
	}
	if tokens[0] != "" || tokens[1] != "p1" || tokens[2] != "p2" {
		t.Fatalf("tokens=%v", tokens)
	}
}

func TestFetchReturnsPartialOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	pages := 0
	fn := func(_ context.Context, _ Request) (Page[int], error) {
		calls++
		if calls == 2 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: []int{1, 2}}, nil
	}
	got, err := Fetch(context.Background(), 2, fn, func(int, int) { pages++ })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 || pages != 1 {
		t.Fatalf("items=%d pages=%d", len(got), pages)
	}
}
