// SPDX-License-Identifier: MIT

package catalog

// Providers is the fixed shelf order of the home payload.
var Providers = []string{"Netflix", "Prime", "Max", "Disney+", "AppleTV", "Paramount"}

// providerNeedles maps a provider shelf to the substrings matched against
// the networks label. Branding varies by region, hence the aliases.
var providerNeedles = map[string][]string{
	"Netflix":   {"Netflix"},
	"Prime":     {"Prime"},
	"Max":       {"Max"},
	"Disney+":   {"Disney+", "Disney"},
	"AppleTV":   {"Apple TV", "AppleTV", "Apple TV+"},
	"Paramount": {"Paramount", "Paramount+"},
}

// homeGenres maps a home shelf key to the genre names it aggregates.
var homeGenres = map[string][]string{
	"Comedy":    {"Comedy"},
	"Action":    {"Action"},
	"Horror":    {"Horror"},
	"Romance":   {"Romance"},
	"SciFi":     {"Science Fiction", "Sci-Fi & Fantasy", "Sci-Fi"},
	"Drama":     {"Drama"},
	"Animation": {"Animation"},
}

type browseSpec struct {
	mode  string
	genre string
}

// browseTabs maps a URL tab segment to its query mode. Unknown tabs 404.
var browseTabs = map[string]browseSpec{
	"popular":         {mode: "popular"},
	"rating":          {mode: "rating"},
	"recent":          {mode: "recent"},
	"action":          {mode: "genre", genre: "Action"},
	"adventure":       {mode: "genre", genre: "Adventure"},
	"animation":       {mode: "genre", genre: "Animation"},
	"comedy":          {mode: "genre", genre: "Comedy"},
	"crime":           {mode: "genre", genre: "Crime"},
	"documentary":     {mode: "genre", genre: "Documentary"},
	"drama":           {mode: "genre", genre: "Drama"},
	"family":          {mode: "genre", genre: "Family"},
	"fantasy":         {mode: "genre", genre: "Fantasy"},
	"history":         {mode: "genre", genre: "History"},
	"horror":          {mode: "genre", genre: "Horror"},
	"music":           {mode: "genre", genre: "Music"},
	"mystery":         {mode: "genre", genre: "Mystery"},
	"romance":         {mode: "genre", genre: "Romance"},
	"science-fiction": {mode: "genre", genre: "Science Fiction"},
	"tv-movie":        {mode: "genre", genre: "TV Movie"},
	"thriller":        {mode: "genre", genre: "Thriller"},
	"war":             {mode: "genre", genre: "War"},
	"western":         {mode: "genre", genre: "Western"},
}

// genreNeedles widens movie genre names to their tv counterparts where the
// provider vocabulary differs.
func genreNeedles(name string) []string {
	if name == "" {
		return nil
	}
	if name == "Science Fiction" {
		return []string{"Science Fiction", "Sci-Fi & Fantasy", "Sci-Fi"}
	}
	return []string{name}
}
