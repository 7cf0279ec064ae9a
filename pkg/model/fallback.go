package model

// fallbackPosts is served when live data cannot be obtained.
var fallbackPosts = []Post{
	{
		ID:          "fallback-1",
		Title:       "Your next post",
		PublishDate: "2024-01-01",
		Platform:    "Instagram",
		Status:      "Published",
		Images:      []MediaRef{{URL: "https://placehold.co/1080x1080/png?text=Post+1", Name: "post-1.png"}},
		Videos:      []MediaRef{},
	},
	{
		ID:          "fallback-2",
		Title:       "Behind the scenes",
		PublishDate: "2024-01-02",
		Platform:    "Instagram",
		Status:      "Published",
		Images:      []MediaRef{{URL: "https://placehold.co/1080x1080/png?text=Post+2", Name: "post-2.png"}},
		Videos:      []MediaRef{},
	},
	{
		ID:          "fallback-3",
		Title:       "Product highlight",
		PublishDate: "2024-01-03",
		Platform:    "Instagram",
		Status:      "Scheduled",
		Images: []MediaRef{
			{URL: "https://placehold.co/1080x1080/png?text=Post+3a", Name: "post-3a.png"},
			{URL: "https://placehold.co/1080x1080/png?text=Post+3b", Name: "post-3b.png"},
		},
		Videos: []MediaRef{},
	},
}

// FallbackPosts returns a fresh copy of the fixed sample posts.
func FallbackPosts() []Post {
	out := make([]Post, len(fallbackPosts))
	for i, p := range fallbackPosts {
		p.Images = append([]MediaRef{}, p.Images...)
		p.Videos = append([]MediaRef{}, p.Videos...)
		out[i] = p
	}
	return out
}
