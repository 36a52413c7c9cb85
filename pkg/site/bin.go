package site

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/Tweska/TildeverseGallery/pkg/cache"
)

const (
	// OtherBucket holds usernames that do not start with a letter
	OtherBucket = "other"
	// IndexBucket holds every user in single page mode
	IndexBucket = "index"
)

// Bucket is one rendered page worth of users
type Bucket struct {
	Name  string
	Users []*cache.UserRecord
}

var folder = cases.Fold()

// foldKey is the case-insensitive comparison key of a username
func foldKey(username string) string {
	return folder.String(username)
}

// BucketNames returns the page names in output order
func BucketNames(single bool) []string {
	if single {
		return []string{IndexBucket}
	}
	names := make([]string, 0, 27)
	for c := 'A'; c <= 'Z'; c++ {
		names = append(names, string(c))
	}
	return append(names, OtherBucket)
}

// BucketOf returns the letter bucket of username
func BucketOf(username string) string {
	key := foldKey(username)
	if key == "" {
		return OtherBucket
	}
	c := key[0]
	if c >= 'a' && c <= 'z' {
		return string(c - 'a' + 'A')
	}
	return OtherBucket
}

// Bin partitions users into A-Z plus other, or a single index bucket.
// Every bucket is returned, empty or not. Within a bucket users are sorted
// by case-folded username; exact ties keep their input order.
func Bin(users []*cache.UserRecord, single bool) []Bucket {
	names := BucketNames(single)
	index := make(map[string]int, len(names))
	buckets := make([]Bucket, len(names))
	for i, n := range names {
		buckets[i] = Bucket{Name: n}
		index[n] = i
	}

	for _, u := range users {
		name := IndexBucket
		if !single {
			name = BucketOf(u.Username)
		}
		i := index[name]
		buckets[i].Users = append(buckets[i].Users, u)
	}

	for i := range buckets {
		b := buckets[i].Users
		sort.SliceStable(b, func(x, y int) bool {
			return foldKey(b[x].Username) < foldKey(b[y].Username)
		})
	}
	return buckets
}
