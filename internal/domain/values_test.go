package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

func TestParseISBN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"thirteen digits", "9787111213826", true},
		{"too short", "978711121382", false},
		{"too long", "97871112138260", false},
		{"hyphenated", "978-7111213826", false},
		{"letters", "978711121382X", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isbn, err := ParseISBN(tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, ISBN(tt.input), isbn)
				return
			}
			assert.ErrorIs(t, err, domainerrors.ErrInvalidISBN)
		})
	}
}

func TestParseISBNs(t *testing.T) {
	_, err := ParseISBNs(nil)
	assert.ErrorIs(t, err, domainerrors.ErrEmptyBookList)

	_, err = ParseISBNs([]string{"9787111213826", "bad"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidISBN)

	isbns, err := ParseISBNs([]string{"9787111213826", "9787111213826"})
	require.NoError(t, err)
	assert.Len(t, isbns, 2)
}

func TestParseBookFields(t *testing.T) {
	_, err := ParseBookName("")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	_, err = ParseBookName(strings.Repeat("书", 50))
	assert.NoError(t, err, "length counts characters, not bytes")

	_, err = ParseBookName(strings.Repeat("a", 51))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	_, err = ParseAuthor("")
	assert.NoError(t, err)

	_, err = ParsePublisher(strings.Repeat("p", 21))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)
}

func TestParseStock(t *testing.T) {
	for _, n := range []int{0, 1, MaxStock} {
		s, err := ParseStock(n)
		require.NoError(t, err)
		assert.Equal(t, Stock(n), s)
	}
	for _, n := range []int{-1, MaxStock + 1} {
		_, err := ParseStock(n)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidData)
	}
}

func TestParsePassword(t *testing.T) {
	valid := []string{"asdc1234ASD", "abc.def.123", "12345678"}
	for _, p := range valid {
		_, err := ParsePassword(p)
		assert.NoError(t, err, p)
	}

	invalid := []string{"short1", "has space 123", ".leading123", "double..dot1", "trailing123.", strings.Repeat("a", 17)}
	for _, p := range invalid {
		_, err := ParsePassword(p)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidData, p)
	}
}

func TestParseUserFields(t *testing.T) {
	email, err := ParseEmail("  Reader@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, Email("reader@example.com"), email)

	_, err = ParseEmail("not-an-email")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	_, err = ParseStudentID("202012345678")
	assert.NoError(t, err)
	_, err = ParseStudentID("20201234567a")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	age, err := ParseAge("21")
	require.NoError(t, err)
	assert.Equal(t, Age(21), age)
	_, err = ParseAge("101")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)
	_, err = ParseAge("old")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	sex, err := ParseSex("")
	require.NoError(t, err)
	assert.Equal(t, SexUnknown, sex)
	_, err = ParseSex("other")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)

	_, err = ParseUsername("")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)
	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidData)
	_, err = ParseUserStatus("disabled")
	assert.NoError(t, err)
}
