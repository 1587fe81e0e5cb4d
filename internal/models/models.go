package models

// Column names used in book tables.
const (
	ColumnISBN      = "ISBN"
	ColumnName      = "Name"
	ColumnText      = "Text"
	ColumnDate      = "Date"
	ColumnTime      = "Time"
	ColumnCreated   = "Created"
	ColumnTitle     = "Title"
	ColumnAuthor    = "Author"
	ColumnPublished = "Published"
	ColumnLCCN      = "LCCN"
	ColumnLink      = "Link"
	ColumnVerified  = "Verified"
)

// KnownColumns lists the columns mapped onto Book fields, in output order.
var KnownColumns = []string{
	ColumnISBN,
	ColumnName,
	ColumnText,
	ColumnDate,
	ColumnTime,
	ColumnCreated,
	ColumnTitle,
	ColumnAuthor,
	ColumnPublished,
	ColumnLCCN,
	ColumnLink,
	ColumnVerified,
}

// NotAvailable marks a book whose LCCN could not be resolved.
const NotAvailable = "N/A"

// Verified flag values written to the Verified column.
const (
	VerifiedYes = "Yes"
	VerifiedNo  = "No"
)

// Book represents one row of the input table, one per physical book
type Book struct {
	ISBN      string `json:"isbn" parquet:"isbn,optional"`
	Name      string `json:"name" parquet:"name,optional"`           // Display name from the scanner app
	Text      string `json:"text" parquet:"text,optional"`           // Raw scanned text
	Date      string `json:"date,omitempty" parquet:"date,optional"` // Scan date
	Time      string `json:"time,omitempty" parquet:"time,optional"` // Scan time
	Created   string `json:"created,omitempty" parquet:"created,optional"`
	Title     string `json:"title,omitempty" parquet:"title,optional"`
	Author    string `json:"author,omitempty" parquet:"author,optional"`
	Published string `json:"published,omitempty" parquet:"published,optional"`
	LCCN      string `json:"lccn,omitempty" parquet:"lccn,optional"`
	Link      string `json:"link,omitempty" parquet:"link,optional"`
	Verified  string `json:"verified,omitempty" parquet:"verified,optional"`

	// Extra holds columns this tool does not interpret, keyed by header.
	Extra map[string]string `json:"-" parquet:"-"`
}

// HasLCCN reports whether a previous run already settled the LCCN, either
// with an identifier or as not available.
func (b *Book) HasLCCN() bool {
	return b.LCCN != ""
}

// NeedsMetadata reports whether title or publication date are still unknown.
func (b *Book) NeedsMetadata() bool {
	return b.Title == "" || b.Published == ""
}

// Get returns the value of a column by header name.
func (b *Book) Get(column string) string {
	switch column {
	case ColumnISBN:
		return b.ISBN
	case ColumnName:
		return b.Name
	case ColumnText:
		return b.Text
	case ColumnDate:
		return b.Date
	case ColumnTime:
		return b.Time
	case ColumnCreated:
		return b.Created
	case ColumnTitle:
		return b.Title
	case ColumnAuthor:
		return b.Author
	case ColumnPublished:
		return b.Published
	case ColumnLCCN:
		return b.LCCN
	case ColumnLink:
		return b.Link
	case ColumnVerified:
		return b.Verified
	default:
		return b.Extra[column]
	}
}

// Set assigns a column by header name.
func (b *Book) Set(column, value string) {
	switch column {
	case ColumnISBN:
		b.ISBN = value
	case ColumnName:
		b.Name = value
	case ColumnText:
		b.Text = value
	case ColumnDate:
		b.Date = value
	case ColumnTime:
		b.Time = value
	case ColumnCreated:
		b.Created = value
	case ColumnTitle:
		b.Title = value
	case ColumnAuthor:
		b.Author = value
	case ColumnPublished:
		b.Published = value
	case ColumnLCCN:
		b.LCCN = value
	case ColumnLink:
		b.Link = value
	case ColumnVerified:
		b.Verified = value
	default:
		if b.Extra == nil {
			b.Extra = make(map[string]string)
		}
		b.Extra[column] = value
	}
}
