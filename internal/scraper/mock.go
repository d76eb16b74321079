package scraper

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

var mockProfiles = []models.ProfileFields{
	{
		Name:           "Sarah Johnson",
		CurrentTitle:   "Senior Product Manager",
		CurrentCompany: "Google",
		Location:       "San Francisco, CA",
		About:          "Experienced product manager with 8+ years in tech, specializing in user experience and data-driven product development.",
		Industry:       "Technology",
		Skills:         []string{"Product Management", "User Research", "Data Analysis", "Agile"},
		Experience: []models.Experience{{
			Title:       "Senior Product Manager",
			Company:     "Google",
			Location:    "Mountain View, CA",
			StartDate:   "2022-01",
			EndDate:     "Present",
			IsCurrent:   true,
			Description: "Leading product strategy for search experiences",
		}},
		Education: []models.Education{{
			School:    "Stanford University",
			Degree:    "MBA",
			Field:     "Business Administration",
			StartYear: 2018,
			EndYear:   2020,
		}},
	},
	{
		Name:           "Michael Chen",
		CurrentTitle:   "Senior Software Engineer",
		CurrentCompany: "Microsoft",
		Location:       "Seattle, WA",
		About:          "Full-stack developer passionate about building scalable web applications and mentoring junior developers.",
		Industry:       "Technology",
		Skills:         []string{"JavaScript", "React", "Node.js", "Python", "AWS"},
		Experience: []models.Experience{{
			Title:       "Senior Software Engineer",
			Company:     "Microsoft",
			Location:    "Redmond, WA",
			StartDate:   "2021-03",
			EndDate:     "Present",
			IsCurrent:   true,
			Description: "Building cloud-native applications for Azure platform",
		}},
		Education: []models.Education{{
			School:    "UC Berkeley",
			Degree:    "BS",
			Field:     "Computer Science",
			StartYear: 2016,
			EndYear:   2020,
		}},
	},
}

// MockWorker returns synthetic profiles without touching the network. The
// template is picked from a hash of the URL so repeated scrapes are stable.
type MockWorker struct {
	Latency time.Duration
}

func NewMockWorker(latency time.Duration) *MockWorker {
	return &MockWorker{Latency: latency}
}

func (w *MockWorker) Scrape(ctx context.Context, rawURL, name string) (*models.ProfileFields, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrParse, rawURL)
	}

	if w.Latency > 0 {
		t := time.NewTimer(w.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-t.C:
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(rawURL))
	p := cloneFields(mockProfiles[h.Sum32()%uint32(len(mockProfiles))])
	if n := strings.TrimSpace(name); n != "" {
		p.Name = n
	}
	return &p, nil
}

func cloneFields(src models.ProfileFields) models.ProfileFields {
	dst := src
	dst.Skills = append([]string(nil), src.Skills...)
	dst.Experience = append([]models.Experience(nil), src.Experience...)
	dst.Education = append([]models.Education(nil), src.Education...)
	return dst
}

var _ Worker = (*MockWorker)(nil)
