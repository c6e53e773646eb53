// SPDX-License-Identifier: MIT

package tmdb

// NamedRef is a {id,name} pair as used for genres and networks.
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Title is the detail payload shared by the movie and tv endpoints. Fields
// only one side populates stay nil for the other.
type Title struct {
	ID           int64      `json:"id"`
	Title        *string    `json:"title"`
	Name         *string    `json:"name"`
	Overview     *string    `json:"overview"`
	VoteAverage  *float64   `json:"vote_average"`
	VoteCount    *int64     `json:"vote_count"`
	ReleaseDate  *string    `json:"release_date"`
	FirstAirDate *string    `json:"first_air_date"`
	Popularity   *float64   `json:"popularity"`
	PosterPath   *string    `json:"poster_path"`
	BackdropPath *string    `json:"backdrop_path"`
	Genres       []NamedRef `json:"genres"`
	Networks     []NamedRef `json:"networks"`
	SeasonCount  *int64     `json:"number_of_seasons"`
	EpisodeCount *int64     `json:"number_of_episodes"`
	Seasons      []Season   `json:"seasons"`
}

// Season is one entry of a tv detail payload's seasons list.
type Season struct {
	ID           *int64  `json:"id"`
	SeasonNumber int64   `json:"season_number"`
	Name         *string `json:"name"`
	Overview     *string `json:"overview"`
	AirDate      *string `json:"air_date"`
	PosterPath   *string `json:"poster_path"`
	EpisodeCount *int64  `json:"episode_count"`
}

// Images is the /images payload, reduced to the logos we consume.
type Images struct {
	Logos []Image `json:"logos"`
}

// Image is one logo entry.
type Image struct {
	FilePath    string   `json:"file_path"`
	Lang        *string  `json:"iso_639_1"`
	AspectRatio *float64 `json:"aspect_ratio"`
}

// Videos is the /videos payload.
type Videos struct {
	Results []Video `json:"results"`
}

// Video is one video entry; Key and Site identify the clip on its host.
type Video struct {
	ID          *string `json:"id"`
	Key         *string `json:"key"`
	Site        *string `json:"site"`
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Official    bool    `json:"official"`
	PublishedAt *string `json:"published_at"`
	Lang        *string `json:"iso_639_1"`
	Region      *string `json:"iso_3166_1"`
	Size        *int64  `json:"size"`
}

// Credits is the /credits payload, reduced to billed cast.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// CastMember is one billed cast entry.
type CastMember struct {
	ID          int64   `json:"id"`
	CreditID    string  `json:"credit_id"`
	CastID      *int64  `json:"cast_id"`
	Name        *string `json:"name"`
	Character   *string `json:"character"`
	Order       *int64  `json:"order"`
	ProfilePath *string `json:"profile_path"`
}

// Translations is the /translations payload.
type Translations struct {
	Translations []Translation `json:"translations"`
}

// Translation is one localized variant. Movies carry Data.Title, series
// Data.Name.
type Translation struct {
	Lang   string          `json:"iso_639_1"`
	Region string          `json:"iso_3166_1"`
	Data   TranslationData `json:"data"`
}

// TranslationData holds the localized text fields.
type TranslationData struct {
	Title    *string `json:"title"`
	Name     *string `json:"name"`
	Overview *string `json:"overview"`
	Tagline  *string `json:"tagline"`
	Homepage *string `json:"homepage"`
}

// SeasonDetail is the /tv/{id}/season/{n} payload.
type SeasonDetail struct {
	Episodes []Episode `json:"episodes"`
}

// Episode is one episode of a season detail payload.
type Episode struct {
	ID            *int64   `json:"id"`
	EpisodeNumber int64    `json:"episode_number"`
	Name          *string  `json:"name"`
	Overview      *string  `json:"overview"`
	AirDate       *string  `json:"air_date"`
	Runtime       *int64   `json:"runtime"`
	StillPath     *string  `json:"still_path"`
	VoteAverage   *float64 `json:"vote_average"`
	VoteCount     *int64   `json:"vote_count"`
}

// ListItem is one result of the trending and similar list endpoints.
// Trending mixes movies and series and tags each with media_type; similar
// results inherit the media type of the query and leave it empty.
type ListItem struct {
	ID           int64    `json:"id"`
	MediaType    string   `json:"media_type"`
	Title        *string  `json:"title"`
	Name         *string  `json:"name"`
	Overview     *string  `json:"overview"`
	ReleaseDate  *string  `json:"release_date"`
	FirstAirDate *string  `json:"first_air_date"`
	VoteAverage  *float64 `json:"vote_average"`
	PosterPath   *string  `json:"poster_path"`
	BackdropPath *string  `json:"backdrop_path"`
}

type listPayload struct {
	Results []ListItem `json:"results"`
}
