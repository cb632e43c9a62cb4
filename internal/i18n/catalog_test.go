package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalesDefineSameKeys(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, c.Locales())
	base := c.Keys(BaseLocale)
	for _, locale := range c.Locales() {
		assert.Equal(t, base, c.Keys(locale), "locale %s", locale)
	}
}

func TestKnownKeysAreDefined(t *testing.T) {
	c := MustLoad()
	defined := map[string]bool{}
	for _, key := range c.Keys(BaseLocale) {
		defined[key] = true
	}
	for _, key := range []string{
		Welcome, Help, NeedUsername, ButtonCreateGame, ButtonJoinGame, ButtonRollout, ButtonExclusions,
		EnterGameName, EnterPasscode, EnterCapacity, InvalidCapacity, EnterExceptions, ExceptionAdded,
		ExceptionRemoved, InvalidException, GameCreated, NothingToFinalize, NoGames, SelectGame,
		JoinEnterPasscode, WrongPasscode, TooManyAttempts, JoinedGame, AdminNewPlayer, AdminGameFull,
		NoFullGames, SelectRollout, RolloutSuccess, RolloutFailed, SantaAssignment, MyGamesHeader,
		MyGamesEmpty, MyGamesLine, StatusOpen, StatusFull, StatusClosed, ExcludeUsage, KickUsage,
		Kicked, KickedNotice, Cancelled, NothingToCancel, UnknownInput, Retry,
		ErrorKey("duplicate_name"), ErrorKey("unsatisfiable"),
	} {
		assert.True(t, defined[key], "missing key %s", key)
	}
}

func TestPrinterFormatsArguments(t *testing.T) {
	c := MustLoad()

	assert.Equal(t, "✅ You joined game Office!", c.Printer("en").Sprintf(JoinedGame, "Office"))
	assert.Equal(t, "✅ Вы присоединились к игре Office!", c.Printer("ru").Sprintf(JoinedGame, "Office"))
	assert.Equal(t,
		"🎅 В игре 'Office' вы дарите подарок для: elf",
		c.Printer("ru").Sprintf(SantaAssignment, "Office", "elf"))
}

func TestPrinterFallsBackToBaseLocale(t *testing.T) {
	c := MustLoad()

	assert.Equal(t, "Game not found.", c.Printer("de").Sprintf(ErrorKey("game_not_found")))
	assert.Equal(t, "Game not found.", c.Printer("not a locale").Sprintf(ErrorKey("game_not_found")))
}

func TestLoadFromFSRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		fs   fstest.MapFS
	}{
		{name: "empty", fs: fstest.MapFS{}},
		{name: "missing base", fs: fstest.MapFS{
			"locales/ru.yaml": {Data: []byte("locale: ru\nmessages:\n  a: b\n")},
		}},
		{name: "no locale", fs: fstest.MapFS{
			"locales/en.yaml": {Data: []byte("messages:\n  a: b\n")},
		}},
		{name: "no messages", fs: fstest.MapFS{
			"locales/en.yaml": {Data: []byte("locale: en\n")},
		}},
		{name: "bad yaml", fs: fstest.MapFS{
			"locales/en.yaml": {Data: []byte("locale: [")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFS(tt.fs)
			assert.Error(t, err)
		})
	}
}

func TestPrinterForClientLanguage(t *testing.T) {
	c := MustLoad()

	assert.Equal(t, "Отменено.", c.PrinterFor("ru", "en").Sprintf(Cancelled))
	assert.Equal(t, "Отменено.", c.PrinterFor("RU-ru", "en").Sprintf(Cancelled))
	assert.Equal(t, "Cancelled.", c.PrinterFor("en-US", "ru").Sprintf(Cancelled))
	assert.Equal(t, "Отменено.", c.PrinterFor("", "ru").Sprintf(Cancelled))
	assert.Equal(t, "Отменено.", c.PrinterFor("pt-br", "ru").Sprintf(Cancelled))
}
