package stubapp

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"time"
)

//go:embed content/*.md
var contentFS embed.FS

// Entry is one post on a board page.
type Entry struct {
	Title  string
	Posted time.Time
	Body   string
}

// Post is one feed item served by the posts API.
type Post struct {
	ID     int    `json:"id"`
	Author string `json:"author"`
	Email  string `json:"-"`
	Body   string `json:"body"`
	Likes  int    `json:"likes"`
}

// Content is the site's static copy.
type Content struct {
	About         string
	Announcements []Entry
	Notices       []Entry
	Posts         []Post
}

// LoadContent reads the embedded markdown.
func LoadContent() (Content, error) {
	var c Content
	about, err := contentFS.ReadFile("content/about.md")
	if err != nil {
		return c, fmt.Errorf("read about: %w", err)
	}
	c.About = string(about)

	for _, board := range []struct {
		file string
		dst  *[]Entry
	}{
		{"content/announcements.md", &c.Announcements},
		{"content/notices.md", &c.Notices},
	} {
		raw, err := contentFS.ReadFile(board.file)
		if err != nil {
			return c, fmt.Errorf("read %s: %w", board.file, err)
		}
		entries, err := ParseEntries(string(raw))
		if err != nil {
			return c, fmt.Errorf("parse %s: %w", board.file, err)
		}
		*board.dst = entries
	}

	c.Posts = []Post{
		{ID: 1, Author: "테스트유저1", Email: "test@test.test", Body: "보리 입양 한 달 차, 산책을 제일 좋아해요.", Likes: 12},
		{ID: 2, Author: "테스트유저2", Email: "test1@test.com", Body: "나비가 처음으로 무릎에 올라왔어요.", Likes: 30},
		{ID: 3, Author: "테스트유저3", Email: "test2@test.com", Body: "보호소 봉사 다녀왔습니다.", Likes: 7},
	}
	return c, nil
}

// ParseEntries splits a board document into entries. Each entry starts with
// a "## " heading; the next non-blank line is its YYYY-MM-DD date and the
// rest is its markdown body.
func ParseEntries(doc string) ([]Entry, error) {
	var (
		entries []Entry
		cur     *Entry
		body    []string
		needDay bool
	)
	flush := func() {
		if cur != nil {
			cur.Body = strings.TrimSpace(strings.Join(body, "\n"))
			entries = append(entries, *cur)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(doc))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			cur = &Entry{Title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			body = nil
			needDay = true
		case cur == nil:
			if strings.TrimSpace(line) != "" {
				return nil, fmt.Errorf("text before first heading: %q", line)
			}
		case needDay:
			if strings.TrimSpace(line) == "" {
				continue
			}
			day, err := time.Parse("2006-01-02", strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("entry %q: bad date: %w", cur.Title, err)
			}
			cur.Posted = day
			needDay = false
		default:
			body = append(body, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return entries, nil
}
