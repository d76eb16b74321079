package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// LinkedIn answers bots with this non-standard status.
const statusLinkedInDenied = 999

const maxBodyBytes = 4 << 20

// HTTPWorker fetches public profile pages and extracts the JSON-LD Person
// block, falling back to OpenGraph tags.
type HTTPWorker struct {
	client    *http.Client
	limiter   *HostLimiter
	userAgent string
}

// NewHTTPWorker creates an HTTPWorker. limiter may be nil.
func NewHTTPWorker(timeout time.Duration, userAgent string, limiter *HostLimiter) *HTTPWorker {
	return &HTTPWorker{
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		userAgent: userAgent,
	}
}

func (w *HTTPWorker) Scrape(ctx context.Context, url, name string) (*models.ProfileFields, error) {
	if w.limiter != nil {
		if err := w.limiter.WaitURL(ctx, url); err != nil {
			return nil, classifyError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrParse, err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == statusLinkedInDenied, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	if strings.Contains(resp.Request.URL.Path, "authwall") || strings.Contains(resp.Request.URL.Path, "/login") {
		return nil, fmt.Errorf("%w: redirected to %s", ErrBlocked, resp.Request.URL.Path)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	p, err := parseProfile(doc)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = strings.TrimSpace(name)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: no name found", ErrParse)
	}
	return p, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// parseProfile prefers structured data and only uses OpenGraph when no Person
// node is present.
func parseProfile(doc *goquery.Document) (*models.ProfileFields, error) {
	var person *ldPerson
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		person = findPerson([]byte(s.Text()))
		return person == nil
	})

	if person != nil {
		return person.fields(), nil
	}

	p := fieldsFromOpenGraph(doc)
	if p.Name == "" && p.About == "" {
		return nil, fmt.Errorf("%w: no profile data in page", ErrParse)
	}
	return p, nil
}

type ldOrg struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Member   *struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"member"`
}

type ldPerson struct {
	Type        json.RawMessage `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	JobTitle    stringList      `json:"jobTitle"`
	WorksFor    []ldOrg         `json:"worksFor"`
	AlumniOf    []ldOrg         `json:"alumniOf"`
	KnowsAbout  stringList      `json:"knowsAbout"`
	Address     struct {
		Locality string `json:"addressLocality"`
		Country  string `json:"addressCountry"`
	} `json:"address"`
	Image struct {
		ContentURL string `json:"contentUrl"`
	} `json:"image"`
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (p *ldPerson) isPerson() bool {
	return strings.Contains(string(p.Type), `"Person"`)
}

func findPerson(raw []byte) *ldPerson {
	var wrapper struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Graph) > 0 {
		for _, node := range wrapper.Graph {
			var p ldPerson
			if json.Unmarshal(node, &p) == nil && p.isPerson() {
				return &p
			}
		}
		return nil
	}

	var p ldPerson
	if json.Unmarshal(raw, &p) == nil && p.isPerson() {
		return &p
	}
	return nil
}

func (p *ldPerson) fields() *models.ProfileFields {
	out := &models.ProfileFields{
		Name:              cleanText(p.Name),
		About:             cleanText(p.Description),
		ProfilePictureURL: p.Image.ContentURL,
		Skills:            []string(p.KnowsAbout),
		Experience:        []models.Experience{},
		Education:         []models.Education{},
	}
	if out.Skills == nil {
		out.Skills = []string{}
	}

	loc := []string{}
	for _, part := range []string{p.Address.Locality, p.Address.Country} {
		if part = cleanText(part); part != "" {
			loc = append(loc, part)
		}
	}
	out.Location = strings.Join(loc, ", ")

	if len(p.JobTitle) > 0 {
		out.CurrentTitle = cleanText(p.JobTitle[0])
	}

	for i, org := range p.WorksFor {
		exp := models.Experience{Company: cleanText(org.Name), Location: cleanText(org.Location)}
		if i < len(p.JobTitle) {
			exp.Title = cleanText(p.JobTitle[i])
		}
		if org.Member != nil {
			exp.StartDate = org.Member.StartDate
			exp.EndDate = org.Member.EndDate
		}
		exp.IsCurrent = exp.EndDate == ""
		out.Experience = append(out.Experience, exp)
	}
	if len(out.Experience) > 0 {
		out.CurrentCompany = out.Experience[0].Company
	}

	for _, school := range p.AlumniOf {
		edu := models.Education{School: cleanText(school.Name)}
		if school.Member != nil {
			edu.StartYear = yearOf(school.Member.StartDate)
			edu.EndYear = yearOf(school.Member.EndDate)
		}
		out.Education = append(out.Education, edu)
	}
	return out
}

// fieldsFromOpenGraph parses titles shaped like "Name - Title - Company | LinkedIn".
func fieldsFromOpenGraph(doc *goquery.Document) *models.ProfileFields {
	meta := func(prop string) string {
		v, _ := doc.Find(fmt.Sprintf(`meta[property="%s"]`, prop)).First().Attr("content")
		return cleanText(v)
	}

	out := &models.ProfileFields{
		About:             meta("og:description"),
		ProfilePictureURL: meta("og:image"),
		Skills:            []string{},
		Experience:        []models.Experience{},
		Education:         []models.Education{},
	}

	title := meta("og:title")
	if title == "" {
		title = cleanText(doc.Find("title").First().Text())
	}
	if i := strings.Index(title, " | "); i >= 0 {
		title = title[:i]
	}
	parts := strings.Split(title, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 {
		out.Name = parts[0]
	}
	if len(parts) > 1 {
		out.CurrentTitle = parts[1]
	}
	if len(parts) > 2 {
		out.CurrentCompany = parts[2]
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		y = y*10 + int(c-'0')
	}
	return y
}

var _ Worker = (*HTTPWorker)(nil)
