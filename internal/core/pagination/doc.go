// Package pagination keeps a growing, duplicate-free, order-stable view over
// a paginated and possibly live query.
//
// # Lifecycle
//
// A Controller is opened for one (query, args) pair and fetches the first
// page immediately:
//
//	LOADING_FIRST_PAGE → CAN_LOAD_MORE ⇄ LOADING_MORE → EXHAUSTED
//	        ↓                                ↓
//	      ERROR  ─────────── LoadMore ──────→ (retry same page)
//
// At most one page fetch is in flight per controller. LoadMore while a fetch
// is pending is a no-op, so pages are appended in request order.
//
// # Live updates
//
// If the provider also implements storage.Feed, change events are applied as
// they arrive, independent of page fetches:
//   - an update for a loaded key replaces it in place
//   - a delete removes the key
//   - a new key inside the loaded range is inserted at its server position
//   - a new key past the loaded range is ignored until its page is loaded
//
// # Quick Start
//
//	c, err := pagination.Open(ctx, provider, "messages", domain.Args{"channel": "general"},
//	    pagination.Options{PageSize: 25})
//	defer c.Close()
//
//	c.Wait(ctx)
//	for c.LoadMore(0) {
//	    c.Wait(ctx)
//	}
//	snap := c.Snapshot()
//
// Changing args on a Binding closes the controller and opens a fresh one.
package pagination
