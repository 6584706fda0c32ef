package domain

// Cursor is an opaque continuation token into a paginated result stream.
// Only the provider that issued it interprets its content.
type Cursor string

// CursorStart asks for the first page.
const CursorStart Cursor = ""

// PageRequest asks a provider for the page following Cursor.
type PageRequest struct {
	Cursor   Cursor
	NumItems int
}

// Page is one provider response.
type Page struct {
	Records        []Record
	ContinueCursor Cursor
	IsDone         bool
}

// ListStatus is the lifecycle state of a paginated list.
type ListStatus string

const (
	ListStatusLoadingFirstPage ListStatus = "loading_first_page"
	ListStatusCanLoadMore      ListStatus = "can_load_more"
	ListStatusLoadingMore      ListStatus = "loading_more"
	ListStatusExhausted        ListStatus = "exhausted"
	ListStatusError            ListStatus = "error"
)
