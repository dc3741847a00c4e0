// Package i18n は画面表示用のラベルカタログを提供する。
// カタログはTOMLファイルとしてバイナリに埋め込む。
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed locales/*.toml
var localeFiles embed.FS

// Bundle は言語コードごとのラベルを保持する。読み込み後は変更しない。
type Bundle struct {
	catalogs    map[string]map[string]string
	defaultLang string
}

// Load は埋め込みカタログを読み込む。defaultLangのカタログが存在しない場合はエラーを返す。
func Load(defaultLang string) (*Bundle, error) {
	return LoadFS(localeFiles, "locales", defaultLang)
}

// LoadFS は指定したファイルシステムのdir配下の *.toml を読み込む。
// ファイル名（拡張子なし）を言語コードとする。
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale dir: %w", err)
	}

	b := &Bundle{
		catalogs:    make(map[string]map[string]string),
		defaultLang: defaultLang,
	}

	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".toml" {
			continue
		}
		lang := strings.TrimSuffix(e.Name(), ".toml")

		var sections map[string]map[string]string
		if _, err := toml.DecodeFS(fsys, path.Join(dir, e.Name()), &sections); err != nil {
			return nil, fmt.Errorf("failed to decode locale %s: %w", lang, err)
		}

		flat := make(map[string]string)
		for section, kv := range sections {
			for k, v := range kv {
				flat[section+"."+k] = v
			}
		}
		b.catalogs[lang] = flat
	}

	if _, ok := b.catalogs[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no catalog", defaultLang)
	}
	return b, nil
}

// Normalize は対応言語ならそのコードを、そうでなければデフォルト言語を返す。
// "fr-CA" のような地域付きコードは言語部分で判定する。
func (b *Bundle) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := b.catalogs[lang]; ok {
		return lang
	}
	return b.defaultLang
}

// T はラベルを返す。指定言語にない場合はデフォルト言語、それにもない場合はキーを返す。
func (b *Bundle) T(lang, key string) string {
	if v, ok := b.catalogs[lang][key]; ok {
		return v
	}
	if v, ok := b.catalogs[b.defaultLang][key]; ok {
		return v
	}
	return key
}

// Translator は言語を固定したラベル参照関数を返す。テンプレートから使用する。
func (b *Bundle) Translator(lang string) func(key string) string {
	lang = b.Normalize(lang)
	return func(key string) string {
		return b.T(lang, key)
	}
}

// Languages は対応言語コードを昇順で返す。
func (b *Bundle) Languages() []string {
	langs := make([]string, 0, len(b.catalogs))
	for l := range b.catalogs {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// DefaultLang はデフォルト言語コードを返す。
func (b *Bundle) DefaultLang() string {
	return b.defaultLang
}
