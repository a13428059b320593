package paginate

import "context"

// Request describes one page. Offset counts items already accumulated;
// Token is the cursor handed back by the previous page, empty on the first.
type Request struct {
	Offset int
	Size   int
	Token  string
}

// Page is one response. Done is an explicit end signal from the source,
// for cursor-based APIs that return a missing next-page token.
type Page[T any] struct {
	Items []T
	Next  string
	Done  bool
}

// FetchFunc loads one page.
type FetchFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

// OnPage is called after each page with the page number (from 1) and its size.
type OnPage func(page, items int)

// Fetch requests pages of size until a short page or an explicit end signal.
// There is no cap on total results; callers bound them by narrowing the query.
// On error the items gathered so far are returned with it.
func Fetch[T any](ctx context.Context, size int, fn FetchFunc[T], hooks ...OnPage) ([]T, error) {
	var all []T
	req := Request{Size: size}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		p, err := fn(ctx, req)
		if err != nil {
			return all, err
		}
		all = append(all, p.Items...)
		for _, h := range hooks {
			h(page, len(p.Items))
		}
		if len(p.Items) < size || p.Done {
			return all, nil
		}
		req.Offset += len(p.Items)
		req.Token = p.Next
	}
}
