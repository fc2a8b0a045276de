package model

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Lang is a language code used as a key in catalog payloads.
// The catalog only ever serves the three codes below.
type Lang string

const (
	// LangKR is Korean, the catalog's source language.
	LangKR Lang = "KR"
	// LangEN is English.
	LangEN Lang = "EN"
	// LangCN is Simplified Chinese.
	LangCN Lang = "CN"
)

// PrimaryLang is the language consumed by the export step.
const PrimaryLang = LangKR

// ErrMissingLanguage is returned when a language-keyed mapping lacks a
// language that a caller needs.
var ErrMissingLanguage = errors.New("missing language key")

// ErrUnknownLanguage is returned when a payload uses a language code outside
// the enumerated set.
var ErrUnknownLanguage = errors.New("unknown language code")

// ParseLang validates a raw language code.
func ParseLang(s string) (Lang, error) {
	switch l := Lang(s); l {
	case LangKR, LangEN, LangCN:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// IsValid reports whether l is one of the enumerated codes.
func (l Lang) IsValid() bool {
	_, err := ParseLang(string(l))
	return err == nil
}

// Tag returns the BCP 47 tag for l.
func (l Lang) Tag() language.Tag {
	switch l {
	case LangKR:
		return language.Korean
	case LangEN:
		return language.English
	case LangCN:
		return language.SimplifiedChinese
	default:
		return language.Und
	}
}

// LangText maps a language to a piece of text (title, subtitle, body).
type LangText map[Lang]string

// Get returns the text for lang, or an error wrapping ErrMissingLanguage.
func (t LangText) Get(lang Lang) (string, error) {
	s, ok := t[lang]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingLanguage, lang)
	}
	return s, nil
}

// Primary returns the primary-language text, or "" when absent.
// Records that passed schema decoding always carry it.
func (t LangText) Primary() string {
	return t[PrimaryLang]
}

