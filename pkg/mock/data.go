package mock

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/model"
)

const (
	minStrLen = 8
	maxStrLen = 64
)

var (
	platforms = []string{"Instagram", "TikTok", "LinkedIn", "Facebook"}
	statuses  = []string{"Draft", "Scheduled", "Published"}
	epoch     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// GeneratePosts builds num posts with every platform and status represented and descending publish dates.
func GeneratePosts(num int) []model.Post {
	list := make([]model.Post, 0, num)
	for i := 0; i < num; i++ {
		id := strconv.Itoa(i)
		post := model.Post{
			ID:          "post-" + id,
			Title:       GenerateRandomString(),
			PublishDate: epoch.AddDate(0, 0, num-i).Format(time.DateOnly),
			Platform:    platforms[i%len(platforms)],
			Status:      statuses[i%len(statuses)],
			Images:      []model.MediaRef{{URL: "https://cdn.example.com/" + id + ".png", Name: id + ".png"}},
			Videos:      []model.MediaRef{},
		}
		if i%5 == 0 {
			post.Videos = append(post.Videos, model.MediaRef{URL: "https://cdn.example.com/" + id + ".mp4", Name: id + ".mp4"})
		}
		list = append(list, post)
	}
	return list
}

// GenerateFilters returns every platform x status combination plus the unfiltered one.
func GenerateFilters() []model.Filters {
	list := []model.Filters{{}}
	for _, p := range platforms {
		for _, s := range statuses {
			list = append(list, model.Filters{Platform: p, Status: s})
		}
	}
	return list
}

func GenerateRandomString() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

	length := rand.Intn(maxStrLen-minStrLen+1) + minStrLen

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(charset[rand.Intn(len(charset))])
	}
	return strings.TrimSpace(sb.String())
}
