package itunes

// searchResponse is the envelope of search and lookup results.
type searchResponse[T any] struct {
	ResultCount int `json:"resultCount"`
	Results     []T `json:"results"`
}

type artistResult struct {
	WrapperType      string `json:"wrapperType"`
	ArtistID         int64  `json:"artistId"`
	ArtistName       string `json:"artistName"`
	PrimaryGenreName string `json:"primaryGenreName"`
}

// songResult is a lookup/search result. Lookup responses mix the artist
// wrapper with the songs, so WrapperType and Kind must be checked.
type songResult struct {
	WrapperType     string `json:"wrapperType"`
	Kind            string `json:"kind"`
	TrackID         int64  `json:"trackId"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackName       string `json:"trackName"`
	PreviewURL      string `json:"previewUrl"`
	TrackTimeMillis int64  `json:"trackTimeMillis"`
}

// RSS chart feed. Every value is wrapped in {"label": ...} or
// {"attributes": {...}}.

type feedResponse struct {
	Feed struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

type label struct {
	Label string `json:"label"`
}

type feedLink struct {
	Attributes struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"attributes"`
}

type feedEntry struct {
	Name   label `json:"im:name"`
	Artist struct {
		Label string `json:"label"`
	} `json:"im:artist"`
	Collection struct {
		Name label `json:"im:name"`
	} `json:"im:collection"`
	ID struct {
		Attributes struct {
			ID string `json:"im:id"`
		} `json:"attributes"`
	} `json:"id"`
	// A single object or an array of objects
	Link    links `json:"link"`
	Preview struct {
		Link feedLink `json:"link"`
	} `json:"im:preview"`
}
