package dashboard

import (
	"embed"
	"io/fs"
)

//go:embed views
var viewsFS embed.FS

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

// GetViewsFS returns the page templates rooted at the views directory.
func GetViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetFixturesFS returns the seed fixtures rooted at the fixtures directory.
func GetFixturesFS() fs.FS {
	sub, err := fs.Sub(fixturesFS, "data/fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}
