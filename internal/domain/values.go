package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

// Value objects are only obtainable through their Parse constructors, so a
// value held in one of these types has already passed validation.

var (
	fieldValidator  = newFieldValidator()
	passwordPattern = regexp.MustCompile(`^[a-z0-9A-Z](\.?[a-z0-9A-Z])*$`)
)

func newFieldValidator() *validator.Validate {
	v := validator.New()
	//nolint:errcheck // Registration only fails on empty tag names.
	_ = v.RegisterValidation("password_chars", func(fl validator.FieldLevel) bool {
		return passwordPattern.MatchString(fl.Field().String())
	})
	return v
}

func checkField(field string, value any, tag string) error {
	if err := fieldValidator.Var(value, tag); err != nil {
		return domainerrors.InvalidDataWithDetails("invalid "+field, map[string]string{field: tag})
	}
	return nil
}

// ISBN is a 13-digit numeric book identifier.
type ISBN string

// ParseISBN validates s as an ISBN-13 digit string.
func ParseISBN(s string) (ISBN, error) {
	if err := fieldValidator.Var(s, "len=13,number"); err != nil {
		return "", domainerrors.ErrInvalidISBN.WithDetails(map[string]string{"isbn": s})
	}
	return ISBN(s), nil
}

// ParseISBNs validates every element of a batch. An empty batch is rejected.
func ParseISBNs(raw []string) ([]ISBN, error) {
	if len(raw) == 0 {
		return nil, domainerrors.ErrEmptyBookList
	}
	out := make([]ISBN, 0, len(raw))
	for _, s := range raw {
		isbn, err := ParseISBN(s)
		if err != nil {
			return nil, err
		}
		out = append(out, isbn)
	}
	return out, nil
}

func (i ISBN) String() string { return string(i) }

// BookName is a title of 1 to 50 characters.
type BookName string

// ParseBookName validates a book title.
func ParseBookName(s string) (BookName, error) {
	if err := checkField("name", s, "min=1,max=50"); err != nil {
		return "", err
	}
	return BookName(s), nil
}

// Author is an author name of at most 20 characters; it may be empty.
type Author string

// ParseAuthor validates an author name.
func ParseAuthor(s string) (Author, error) {
	if err := checkField("author", s, "max=20"); err != nil {
		return "", err
	}
	return Author(s), nil
}

// Publisher is a publisher name of at most 20 characters; it may be empty.
type Publisher string

// ParsePublisher validates a publisher name.
func ParsePublisher(s string) (Publisher, error) {
	if err := checkField("publisher", s, "max=20"); err != nil {
		return "", err
	}
	return Publisher(s), nil
}

// MaxStock is the largest number of copies a single title may hold.
const MaxStock = 100

// Stock is the number of owned copies of a title, between 0 and MaxStock.
type Stock int

// ParseStock validates a copy count.
func ParseStock(n int) (Stock, error) {
	if err := checkField("stock", n, "gte=0,lte=100"); err != nil {
		return 0, err
	}
	return Stock(n), nil
}

// Email is a user's login identity.
type Email string

// ParseEmail validates and normalizes an email address.
func ParseEmail(s string) (Email, error) {
	s = strings.TrimSpace(s)
	if err := checkField("email", s, "required,email"); err != nil {
		return "", err
	}
	return Email(strings.ToLower(s)), nil
}

func (e Email) String() string { return string(e) }

// Password is a plaintext password that satisfies the account policy.
type Password string

// ParsePassword validates a new password: 8 to 16 letters or digits, optionally
// separated by single dots.
func ParsePassword(s string) (Password, error) {
	if err := checkField("password", s, "min=8,max=16,password_chars"); err != nil {
		return "", err
	}
	return Password(s), nil
}

// Username is a display name of 1 to 10 characters.
type Username string

// ParseUsername validates a display name.
func ParseUsername(s string) (Username, error) {
	if err := checkField("username", s, "min=1,max=10"); err != nil {
		return "", err
	}
	return Username(s), nil
}

// StudentID is a 12-digit student number.
type StudentID string

// ParseStudentID validates a student number.
func ParseStudentID(s string) (StudentID, error) {
	if err := checkField("sid", s, "len=12,number"); err != nil {
		return "", err
	}
	return StudentID(s), nil
}

// Introduction is a free-text profile blurb of at most 200 characters.
type Introduction string

// ParseIntroduction validates a profile blurb.
func ParseIntroduction(s string) (Introduction, error) {
	if err := checkField("introduction", s, "max=200"); err != nil {
		return "", err
	}
	return Introduction(s), nil
}

// Age is a user's age between 0 and 100.
type Age int

// ParseAge validates an age given as a decimal string, as the web form sends it.
func ParseAge(s string) (Age, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domainerrors.InvalidDataWithDetails("invalid age", map[string]string{"age": "number"})
	}
	if err := checkField("age", n, "gte=0,lte=100"); err != nil {
		return 0, err
	}
	return Age(n), nil
}

// Sex is one of male, female or unknown.
type Sex string

// Sex values.
const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// ParseSex validates a sex value. An empty string maps to SexUnknown.
func ParseSex(s string) (Sex, error) {
	if s == "" {
		return SexUnknown, nil
	}
	if err := checkField("sex", s, "oneof=male female unknown"); err != nil {
		return "", err
	}
	return Sex(s), nil
}
