package domain

// Book is one catalog title and its copy counts.
// Stock is the number of owned copies; Remain is how many are on the shelf.
// 0 <= Remain <= Stock holds for every persisted book.
type Book struct {
	ISBN      ISBN      `json:"isbn"`
	Name      BookName  `json:"name"`
	Author    Author    `json:"author"`
	Publisher Publisher `json:"publisher"`
	Stock     int       `json:"stock"`
	Remain    int       `json:"remain"`
}

// NewBook creates a fully stocked book.
func NewBook(isbn ISBN, name BookName, author Author, publisher Publisher, stock Stock) *Book {
	return &Book{
		ISBN:      isbn,
		Name:      name,
		Author:    author,
		Publisher: publisher,
		Stock:     int(stock),
		Remain:    int(stock),
	}
}

// Borrowed returns the number of copies currently on loan.
func (b *Book) Borrowed() int {
	return b.Stock - b.Remain
}

// Consistent reports whether the copy counts satisfy 0 <= remain <= stock.
func (b *Book) Consistent() bool {
	return b.Remain >= 0 && b.Remain <= b.Stock
}

// Restock sets a new stock level while keeping the number of lent copies.
// It reports false, leaving the book untouched, when newStock is smaller than
// the number of copies on loan.
func (b *Book) Restock(newStock Stock) bool {
	borrowed := b.Borrowed()
	if int(newStock) < borrowed {
		return false
	}
	b.Stock = int(newStock)
	b.Remain = int(newStock) - borrowed
	return true
}
