// Package recovery はパスワード再設定リンクのリダイレクトパラメータを解釈し、
// 新しいパスワードの送信を扱う。
package recovery

import (
	"net/url"
	"strings"
)

// Params はリダイレクトURLのフラグメントに載るパラメータ。
type Params struct {
	Type             string
	ErrorCode        string
	ErrorDescription string
}

// ParseFragment は "#" 以降の部分をkey=value形式として解釈する。
// 先頭の "#" はあってもなくてもよい。解釈できない場合は空のParamsを返す。
func ParseFragment(fragment string) Params {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return Params{}
	}
	return ParamsFromValues(values)
}

// ParamsFromValues はクエリ値からParamsを取り出す。
func ParamsFromValues(values url.Values) Params {
	return Params{
		Type:             values.Get("type"),
		ErrorCode:        values.Get("error_code"),
		ErrorDescription: values.Get("error_description"),
	}
}

// Values はParamsをクエリ値に変換する。空のキーは含めない。
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Type != "" {
		v.Set("type", p.Type)
	}
	if p.ErrorCode != "" {
		v.Set("error", "access_denied")
		v.Set("error_code", p.ErrorCode)
	}
	if p.ErrorDescription != "" {
		v.Set("error_description", p.ErrorDescription)
	}
	return v
}
