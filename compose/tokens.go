package compose

import "time"

// Token names a {{placeholder}} in the master template.
type Token string

const (
	TokenUser            Token = "user"
	TokenUserProfileURL  Token = "userprofileurl"
	TokenPublishedTime   Token = "publishedtime"
	TokenModifiedTime    Token = "modifiedtime"
	TokenStoryTitle      Token = "storytitle"
	TokenMetaDescription Token = "metadescription"
	TokenMetaKeywords    Token = "metakeywords"
	TokenContentType     Token = "contenttype"
	TokenLang            Token = "lang"
	TokenPageTitle       Token = "pagetitle"
	TokenCanonicalURL    Token = "canurl"
	TokenCanonicalHTML   Token = "canurl1"
	TokenImage           Token = "image0"
	TokenPortraitCover   Token = "potraitcoverurl"
	TokenThumbnailCover  Token = "msthumbnailcoverurl"
)

// Recognized lists every token a complete substitution map provides.
var Recognized = []Token{
	TokenUser,
	TokenUserProfileURL,
	TokenPublishedTime,
	TokenModifiedTime,
	TokenStoryTitle,
	TokenMetaDescription,
	TokenMetaKeywords,
	TokenContentType,
	TokenLang,
	TokenPageTitle,
	TokenCanonicalURL,
	TokenCanonicalHTML,
	TokenImage,
	TokenPortraitCover,
	TokenThumbnailCover,
}

// Marker returns the literal form of t as written in a template.
func (t Token) Marker() string { return "{{" + string(t) + "}}" }

// TimestampLayout renders a UTC instant as 2024-05-01T09:30:00+00:00.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// Timestamp formats t in UTC at second precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Values maps tokens to their substitutions. Values are inserted verbatim;
// markers inside a value are never expanded.
type Values map[Token]string

// SetTimes sets both the published and modified tokens to now.
func (v Values) SetTimes(now time.Time) {
	ts := Timestamp(now)
	v[TokenPublishedTime] = ts
	v[TokenModifiedTime] = ts
}

// SetAttribution credits p.
func (v Values) SetAttribution(p Person) {
	v[TokenUser] = p.Name
	v[TokenUserProfileURL] = p.ProfileURL
}

// Missing returns the recognized tokens v has no entry for.
func (v Values) Missing() []Token {
	var out []Token
	for _, t := range Recognized {
		if _, ok := v[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
