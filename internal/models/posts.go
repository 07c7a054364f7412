package models

// LocationMeta is a geocoded location attached to a post.
type LocationMeta struct {
	GridMetaID ID      `json:"grid_meta_id,omitempty"`
	GridID     ID      `json:"grid_id"`
	Label      string  `json:"label"`
	Address    string  `json:"address,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// Post is a record returned by the list-by-filter query.
type Post struct {
	ID               ID             `json:"ID"`
	Name             string         `json:"name"`
	PostType         string         `json:"post_type"`
	LastModified     int64          `json:"last_modified,omitempty"`
	LocationGridMeta []LocationMeta `json:"location_grid_meta,omitempty"`
}

type PointGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type FeatureProperties struct {
	Address  string `json:"address"`
	PostID   ID     `json:"post_id"`
	Name     string `json:"name"`
	PostType string `json:"post_type"`
}

type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   PointGeometry     `json:"geometry"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// PostsToGeoJSON emits one point per geocoded location of each post.
// Locations with a zero latitude or longitude are skipped.
func PostsToGeoJSON(posts []Post, postType string) FeatureCollection {
	features := make([]Feature, 0)
	for _, post := range posts {
		for _, loc := range post.LocationGridMeta {
			if loc.Lat == 0 || loc.Lng == 0 {
				continue
			}
			name := post.Name
			if name == "" {
				name = loc.Label
			}
			features = append(features, Feature{
				Type: "Feature",
				Properties: FeatureProperties{
					Address:  loc.Address,
					PostID:   post.ID,
					Name:     name,
					PostType: postType,
				},
				Geometry: PointGeometry{
					Type:        "Point",
					Coordinates: []float64{loc.Lng, loc.Lat, 1},
				},
			})
		}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
