package badgerstore

import "github.com/books-manager/books-manager-server/internal/domain"

// Key layout:
//
//	book:<isbn>                       Book
//	user:<email>                      User
//	loan:<id>                         LoanRecord
//	return:<id>                       ReturnRecord
//	idx:loan:borrower:<email>:<id>    (empty)
//	idx:loan:isbn:<isbn>:<id>         (empty)
//	idx:return:borrower:<email>:<id>  (empty)
//	idx:return:isbn:<isbn>:<id>       (empty)
const (
	bookPrefix   = "book:"
	userPrefix   = "user:"
	loanPrefix   = "loan:"
	returnPrefix = "return:"

	loanByBorrowerPrefix   = "idx:loan:borrower:"
	loanByISBNPrefix       = "idx:loan:isbn:"
	returnByBorrowerPrefix = "idx:return:borrower:"
	returnByISBNPrefix     = "idx:return:isbn:"
)

func bookKey(isbn domain.ISBN) []byte { return []byte(bookPrefix + string(isbn)) }
func userKey(email domain.Email) []byte { return []byte(userPrefix + string(email)) }
func loanKey(id string) []byte { return []byte(loanPrefix + id) }
func returnKey(id string) []byte { return []byte(returnPrefix + id) }

func indexKey(prefix, value, id string) []byte {
	return []byte(prefix + value + ":" + id)
}

// indexPrefix is the scan prefix for every id indexed under value.
func indexPrefix(prefix, value string) []byte {
	return []byte(prefix + value + ":")
}
