// Package i18n loads the bot's message catalogs and hands out printers for
// a locale.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

type Catalog struct {
	builder  *catalog.Builder
	messages map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
}

// Load reads the embedded locale files.
func Load() (*Catalog, error) {
	return LoadFromFS(embeddedLocales)
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{
		builder:  catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
		messages: map[string]map[string]string{},
	}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := c.add(path, file); err != nil {
			return nil, err
		}
	}
	if _, ok := c.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	// The matcher answers its first tag when nothing matches.
	c.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range c.Locales() {
		if locale != BaseLocale {
			c.tags = append(c.tags, language.MustParse(locale))
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) add(path string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if _, exists := c.messages[locale]; exists {
		return fmt.Errorf("catalog %s: locale %q defined twice", path, locale)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale %q: %w", path, locale, err)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", path)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if err := c.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: key %q: %w", path, key, err)
		}
		messages[key] = value
	}
	c.messages[locale] = messages
	return nil
}

// Printer returns a printer for locale. Unknown locales and missing keys
// fall back to the base locale.
func (c *Catalog) Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return message.NewPrinter(c.tags[0], message.Catalog(c.builder))
	}
	_, index, _ := c.matcher.Match(tag)
	return message.NewPrinter(c.tags[index], message.Catalog(c.builder))
}

// PrinterFor picks the catalog locale matching a client language code such
// as "ru" or "en-US", or fallback when none does.
func (c *Catalog) PrinterFor(locale, fallback string) *message.Printer {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if c.Has(locale) {
		return c.Printer(locale)
	}
	if base, _, ok := strings.Cut(locale, "-"); ok && c.Has(base) {
		return c.Printer(base)
	}
	return c.Printer(fallback)
}

func (c *Catalog) Has(locale string) bool {
	_, ok := c.messages[locale]
	return ok
}

// Locales returns the loaded locale identifiers, sorted.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Keys returns the message keys defined for locale, sorted.
func (c *Catalog) Keys(locale string) []string {
	messages := c.messages[locale]
	out := make([]string, 0, len(messages))
	for key := range messages {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
