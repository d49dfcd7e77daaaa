// Package rtmp reads the list of live streams from an nginx-rtmp statistics
// page and matches each stream to a known person.
package rtmp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/overlay-core/internal/timeline"
)

// ErrCouldNotGetStats is returned when the statistics page cannot be read or
// parsed. It is distinct from an empty stream list.
var ErrCouldNotGetStats = errors.New("rtmp: could not get stats")

const (
	defaultTimeout = 5 * time.Second
	maxStatsBytes  = 4 << 20
)

// Stream is one stream being published to the server.
type Stream struct {
	ID  string `json:"id"`
	URL string `json:"url"`

	// Person is the runner publishing this stream, nil when unknown.
	Person *timeline.Person `json:"person,omitempty"`
}

// PersonLister supplies the people streams are matched against.
type PersonLister interface {
	ListPeople(ctx context.Context) ([]timeline.Person, error)
}

// Source fetches streams on demand. There is no polling loop.
type Source struct {
	statsURI string
	baseURI  string
	people   PersonLister
	client   *http.Client
}

// NewSource creates a Source. baseURI is the RTMP application URL a stream
// key is appended to, e.g. rtmp://stream.example.org/live.
func NewSource(statsURI, baseURI string, people PersonLister, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Source{
		statsURI: statsURI,
		baseURI:  strings.TrimRight(baseURI, "/"),
		people:   people,
		client:   &http.Client{Timeout: timeout},
	}
}

// statsDoc is the part of the nginx-rtmp stat document we read.
type statsDoc struct {
	Servers []struct {
		Applications []struct {
			Name string `xml:"name"`
			Live struct {
				Streams []struct {
					Name string `xml:"name"`
				} `xml:"stream"`
			} `xml:"live"`
		} `xml:"application"`
	} `xml:"server"`
}

// Streams returns every active stream. A person is attached when their
// stream host is the stream key or its full URL, or else when their name
// equals the stream key.
func (s *Source) Streams(ctx context.Context) ([]Stream, error) {
	ids, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Stream{}, nil
	}

	people, err := s.people.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}

	streams := make([]Stream, 0, len(ids))
	for _, id := range ids {
		st := Stream{ID: id, URL: s.baseURI + "/" + id}
		st.Person = match(people, st)
		streams = append(streams, st)
	}
	return streams, nil
}

func (s *Source) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.statsURI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotGetStats, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotGetStats, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrCouldNotGetStats, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotGetStats, err)
	}
	return parseStats(body)
}

func parseStats(body []byte) ([]string, error) {
	var doc statsDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouldNotGetStats, err)
	}

	var ids []string
	for _, srv := range doc.Servers {
		for _, app := range srv.Applications {
			for _, st := range app.Live.Streams {
				if id := strings.TrimSpace(st.Name); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

func match(people []timeline.Person, st Stream) *timeline.Person {
	for i := range people {
		host := strings.TrimSpace(people[i].StreamHost)
		if host != "" && (host == st.ID || host == st.URL) {
			return &people[i]
		}
	}
	key := timeline.NormalizeName(st.ID)
	for i := range people {
		if timeline.NormalizeName(people[i].Name) == key {
			return &people[i]
		}
	}
	return nil
}
