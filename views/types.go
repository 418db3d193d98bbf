package views

// SummaryData is what the submission summary page shows.
type SummaryData struct {
	SiteName     string
	Title        string
	URLSlug      string
	StoryLink    string
	StoryHTMLURL string
	// StoryURL is empty unless the document was uploaded.
	StoryURL     string
	CoverImage   string
	ImageURL     string
	AssetKind    string
	Author       string
	AuthorURL    string
	CategoryCode int
	FilterTags   []string
	ArchiveName  string
	Manifest     string
	Warnings     []string
}
