package notification

import "golang.org/x/text/language"

// Records are authored in Chinese with an optional English variant.
var localeMatcher = language.NewMatcher([]language.Tag{
	language.Chinese,
	language.English,
})

// PrefersEnglish reports whether an Accept-Language style preference
// ("en", "en-US,en;q=0.9", "zh-CN") resolves to English. Empty or
// unparseable preferences resolve to Chinese.
func PrefersEnglish(pref string) bool {
	if pref == "" {
		return false
	}
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return false
	}
	_, idx, _ := localeMatcher.Match(tags...)
	return idx == 1
}
