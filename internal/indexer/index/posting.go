package index

// PostingList is the list of document IDs a term occurs in, one entry per
// occurrence, in document order.
type PostingList []int

// TermEntry pairs a term with its posting list.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats summarises an index.
type Stats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}
