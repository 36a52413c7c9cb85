package site

import (
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Tweska/TildeverseGallery/pkg/errors"
)

// UserView is what the template sees of a user
type UserView struct {
	Username   string
	URL        string
	Screenshot string
	Thumbnail  string
	LastActive string
	IsDefault  bool
	HasError   bool
}

// PageData is the input of the template for one bucket
type PageData struct {
	Bucket     string
	Buckets    []string
	UpdateTime string
	Summary    string
	Users      []UserView
}

var printer = message.NewPrinter(language.English)

// LoadTemplate parses the page template at dir/name
func LoadTemplate(dir, name string) (*template.Template, error) {
	path := filepath.Join(dir, name)
	tmpl, err := template.New(filepath.Base(name)).Funcs(template.FuncMap{
		"page": PageName,
	}).ParseFiles(path)
	if err != nil {
		return nil, errors.Template("load "+path, err)
	}
	return tmpl, nil
}

// PageName is the file name of a bucket page
func PageName(bucket string) string {
	return bucket + ".html"
}

// FormatTime renders a generation timestamp for display
func FormatTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04 UTC")
}

func summary(users, total int) string {
	return printer.Sprintf("%d of %d users", users, total)
}

func lastActive(epoch int64) string {
	if epoch <= 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format("2006-01-02")
}

func pageError(bucket string, err error) error {
	return errors.Template(fmt.Sprintf("render %s", PageName(bucket)), err)
}
