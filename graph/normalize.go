package graph

import (
	"fmt"
	"time"

	"github.com/zvonler/wallspider/model"
)

// ReadableLayout renders an instant the way a JavaScript Date's
// toDateString() and toTimeString() read when joined by a space.
const ReadableLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

var createdTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseCreatedTime parses a Graph API created_time. Empty or unparseable
// values fall back to the Unix epoch rather than failing the record.
func ParseCreatedTime(s string) time.Time {
	for _, layout := range createdTimeLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm
		}
	}
	return time.Unix(0, 0).UTC()
}

// Normalizer flattens raw pages into records. Location controls the zone of
// ReadableTime and defaults to UTC.
type Normalizer struct {
	Location *time.Location
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// Normalize emits one record per item, pages in order and items in order
// within each page.
func (n Normalizer) Normalize(pages []model.RawPage) ([]model.Record, error) {
	count := 0
	for _, page := range pages {
		count += len(page.Data)
	}

	records := make([]model.Record, 0, count)
	for pageNum, page := range pages {
		for itemNum, item := range page.Data {
			if item.From == nil {
				return nil, &MalformedResponseError{
					Reason: fmt.Sprintf("page %d item %d (id %q) has no from author", pageNum+1, itemNum+1, item.ID),
				}
			}
			records = append(records, n.record(item))
		}
	}
	return records, nil
}

func (n Normalizer) record(item model.Item) model.Record {
	created := ParseCreatedTime(item.CreatedTime)
	return model.Record{
		ID:           item.ID,
		Message:      item.Text(),
		By:           item.From.Name,
		CreatedTime:  created.Unix(),
		ReadableTime: created.In(n.location()).Format(ReadableLayout),
	}
}
