// Package i18n localizes envelope messages for the web front-end.
// English is the default; Simplified Chinese is served when the client asks for it.
package i18n

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
)

var supported = []language.Tag{
	language.English,
	language.SimplifiedChinese,
}

var matcher = language.NewMatcher(supported)

type translation struct {
	en string
	zh string
}

var translations = map[domainerrors.Code]translation{
	domainerrors.CodeSuccess:            {"success", "成功"},
	domainerrors.CodeRegisterFailed:     {"register failed", "注册失败"},
	domainerrors.CodeUserAlreadyExists:  {"user already exists", "用户已存在"},
	domainerrors.CodeUserNotFound:       {"user does not exist", "用户不存在"},
	domainerrors.CodeInvalidCredentials: {"invalid email or password", "邮箱或密码输入错误"},
	domainerrors.CodeTokenCreation:      {"failed to create token, please try again later", "Token 创建失败，请稍后再试"},
	domainerrors.CodeInvalidToken:       {"invalid token, please log in again", "无效的Token，请重新登录后重试"},
	domainerrors.CodeInternal:           {"internal error", "内部错误"},
	domainerrors.CodeAccountDisabled:    {"account was disabled", "账号被禁用"},
	domainerrors.CodeBookAlreadyExists:  {"book already exists", "书籍已存在"},
	domainerrors.CodeAddBookFailed:      {"failed to add book", "无法添加书籍"},
	domainerrors.CodeBookNotFound:       {"book does not exist", "书籍不存在"},
	domainerrors.CodeDeleteBookFailed:   {"failed to delete book", "删除书籍失败"},
	domainerrors.CodeInvalidRequest:     {"invalid request, please log in again", "无效的请求，请重新登录后重试"},
	domainerrors.CodeNotAdmin:           {"current user is not an admin", "当前的用户不是管理员，无权操作"},
	domainerrors.CodeEmptyBookList:      {"book list is empty", "书籍列表为空"},
	domainerrors.CodeInvalidData:        {"invalid data, please check your input", "不合法的数据，请检查你的输入"},
	domainerrors.CodeInvalidISBN:        {"invalid isbn", "非法的 ISBN 号"},
	domainerrors.CodeNoRemain:           {"no remaining copies", "没有剩余书籍"},
	domainerrors.CodeStorage:            {"database error", "数据库错误"},
	domainerrors.CodeNotBorrowed:        {"you have not borrowed this book", "你没有借过此书"},
	domainerrors.CodeAlreadyBorrowed:    {"you have already borrowed this book", "你已经借过此书"},
	domainerrors.CodeStockTooLow:        {"stock is not enough", "库存不足"},
	domainerrors.CodeWrongPassword:      {"wrong password", "错误的密码"},
	domainerrors.CodeRateLimited:        {"too many requests, please try again later", "请求过于频繁，请稍后再试"},
}

var messages = buildCatalog()

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for code, tr := range translations {
		key := messageKey(code)
		// Builder.SetString only fails on malformed tags, and both tags are constants.
		_ = b.SetString(language.English, key, tr.en)
		_ = b.SetString(language.SimplifiedChinese, key, tr.zh)
	}
	return b
}

func messageKey(code domainerrors.Code) string {
	return fmt.Sprintf("code.%d", code)
}

// Negotiate picks the best supported language for an Accept-Language header value.
func Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Message returns the localized text for code. ok is false for unknown codes.
func Message(tag language.Tag, code domainerrors.Code) (text string, ok bool) {
	if _, known := translations[code]; !known {
		return "", false
	}
	p := message.NewPrinter(tag, message.Catalog(messages))
	return p.Sprintf(messageKey(code)), true
}

type ctxKey struct{}

// WithLanguage stores the negotiated language in ctx.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// FromContext returns the language stored in ctx, defaulting to English.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}
