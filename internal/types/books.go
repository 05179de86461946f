package types

import "sort"

// Book describes one kanda and how the source site names it.
type Book struct {
	ID    string
	Title string
	// Slug is the directory name on the source site.
	Slug string
	// Short is the file prefix on the source site.
	Short string
	// Sargas is the number of chapters in the book.
	Sargas int
}

var books = map[string]Book{
	"bala":       {ID: "bala", Title: "Bala Kanda", Slug: "baala", Short: "bala", Sargas: 77},
	"ayodhya":    {ID: "ayodhya", Title: "Ayodhya Kanda", Slug: "ayodhya", Short: "ayodhya", Sargas: 119},
	"aranya":     {ID: "aranya", Title: "Aranya Kanda", Slug: "aranya", Short: "aranya", Sargas: 75},
	"kishkindha": {ID: "kishkindha", Title: "Kishkindha Kanda", Slug: "kish", Short: "kish", Sargas: 67},
	"sundara":    {ID: "sundara", Title: "Sundara Kanda", Slug: "sundara", Short: "sundara", Sargas: 68},
	"yuddha":     {ID: "yuddha", Title: "Yuddha Kanda", Slug: "yuddha", Short: "yuddha", Sargas: 128},
	"uttara":     {ID: "uttara", Title: "Uttara Kanda", Slug: "uttara", Short: "uttara", Sargas: 111},
}

// LookupBook returns the book with the given id.
func LookupBook(id string) (Book, bool) {
	b, ok := books[id]
	return b, ok
}

// BookIDs returns all known book ids, sorted.
func BookIDs() []string {
	ids := make([]string, 0, len(books))
	for id := range books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
