package listing

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"guida/internal/core"
)

func sampleBusinesses() []core.Business {
	day := func(d int) time.Time { return time.Date(2025, 6, d, 9, 0, 0, 0, time.UTC) }
	return []core.Business{
		{ID: "1", Name: "Trattoria Da Enzo", Category: "restaurant", City: "Rome", Rating: 4.6, Status: core.StatusActive, CreatedDate: day(3)},
		{ID: "2", Name: "hotel Roma", Category: "hotel", City: "Rome", Rating: 4.1, Featured: true, Status: core.StatusActive, CreatedDate: day(1)},
		{ID: "3", Name: "Gelateria Alberto", Category: "cafe", City: "Florence", Rating: 4.8, Description: "Artisan gelato", Status: core.StatusActive, CreatedDate: day(5)},
		{ID: "4", Name: "Caffe Greco", Category: "cafe", City: "Rome", Rating: 4.8, Featured: true, Status: core.StatusPending, CreatedDate: day(2)},
		{ID: "5", Name: "Bike Tours", Category: "tour", City: "Florence", Rating: 3.9, Status: core.StatusInactive, CreatedDate: day(4)},
	}
}

func ids(items []core.Business) string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.ID
	}
	return strings.Join(out, ",")
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantIDs string
		total   int
		pages   int
	}{
		{name: "defaults keep input order", opts: Options{}, wantIDs: "1,2,3,4,5", total: 5, pages: 1},
		{name: "city is case-insensitive", opts: Options{City: "rome"}, wantIDs: "1,2,4", total: 3, pages: 1},
		{name: "category and status", opts: Options{Category: "cafe", Status: core.StatusActive}, wantIDs: "3", total: 1, pages: 1},
		{name: "search matches description", opts: Options{Search: "GELATO"}, wantIDs: "3", total: 1, pages: 1},
		{name: "featured only", opts: Options{Featured: true}, wantIDs: "2,4", total: 2, pages: 1},
		{name: "name ascending ignores case", opts: Options{Sort: "name"}, wantIDs: "5,4,3,2,1", total: 5, pages: 1},
		{name: "rating descending is stable", opts: Options{Sort: "-rating"}, wantIDs: "3,4,1,2,5", total: 5, pages: 1},
		{name: "newest first", opts: Options{Sort: "-created_date"}, wantIDs: "3,5,1,4,2", total: 5, pages: 1},
		{name: "featured then rating", opts: Options{Sort: "featured"}, wantIDs: "4,2,3,1,5", total: 5, pages: 1},
		{name: "second page", opts: Options{Sort: "name", Page: 2, PerPage: 2}, wantIDs: "3,2", total: 5, pages: 3},
		{name: "page past the end", opts: Options{Page: 9, PerPage: 2}, wantIDs: "", total: 5, pages: 3},
		{name: "no matches", opts: Options{City: "Venice"}, wantIDs: "", total: 0, pages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Apply(sampleBusinesses(), tt.opts)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := ids(page.Items); got != tt.wantIDs {
				t.Errorf("ids = %q, want %q", got, tt.wantIDs)
			}
			if page.Total != tt.total || page.Pages != tt.pages {
				t.Errorf("total/pages = %d/%d, want %d/%d", page.Total, page.Pages, tt.total, tt.pages)
			}
		})
	}
}

func TestApply_PageBounds(t *testing.T) {
	page, err := Apply(sampleBusinesses(), Options{Page: -3, PerPage: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 1 || page.PerPage != MaxPerPage {
		t.Errorf("page/perPage = %d/%d", page.Page, page.PerPage)
	}

	page, _ = Apply(nil, Options{})
	if page.PerPage != DefaultPerPage || page.Items == nil {
		t.Errorf("empty page should carry a non-nil item slice: %+v", page)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	items := sampleBusinesses()
	before := sampleBusinesses()
	if _, err := Apply(items, Options{Sort: "-rating"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, items); diff != "" {
		t.Errorf("input changed (-before +after):\n%s", diff)
	}
}

func TestApply_InvalidSort(t *testing.T) {
	_, err := Apply(sampleBusinesses(), Options{Sort: "-price"})
	if !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("err = %v, want ErrInvalidSort", err)
	}
}
